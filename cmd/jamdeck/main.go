package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/five82/jamdeck/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override prefs path (optional)")
	server := flag.String("server", "", "server host:port or URL (overrides config)")
	headless := flag.Bool("headless", false, "log playback to the console instead of drawing the TUI")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// A .env file is optional; it only seeds JAMDECK_* overrides.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Server:     *server,
		Headless:   *headless,
		Debug:      *debug,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "jamdeck: %v\n", err)
		return 1
	}
	return 0
}
