package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/config"
	"github.com/five82/jamdeck/internal/jamapi"
	"github.com/five82/jamdeck/internal/logging"
	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/prefs"
	"github.com/five82/jamdeck/internal/reconcile"
	"github.com/five82/jamdeck/internal/session"
	"github.com/five82/jamdeck/internal/ui"
	"github.com/five82/jamdeck/internal/viewer"
)

// Options configure the jamdeck application.
type Options struct {
	ConfigPath string // empty uses ~/.config/jamdeck/config.toml
	PrefsPath  string // empty uses ~/.config/jamdeck/prefs.toml
	Server     string // overrides the configured server
	Headless   bool   // log playback instead of drawing the TUI
	Debug      bool
}

// Run boots jamdeck until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Server != "" {
		cfg.Server = opts.Server
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Debug: opts.Debug, File: cfg.LogFile}
	if opts.Headless {
		logOpts.Console = os.Stderr
	}
	closeLog, err := logging.Setup(logOpts)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closeLog() }()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", prefsPath).Msg("load prefs")
	}

	client, err := jamapi.NewClient(cfg.Server, jamapi.WithDownloadTimeout(cfg.DownloadTimeout))
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	sess, err := session.New(session.Config{
		Endpoint:          client.WebSocketURL(),
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnectDelay: cfg.MaxReconnectDelay,
	})
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	player := media.NewVirtual(media.WithProber(client))
	defer player.Close()

	rec := reconcile.New(player,
		reconcile.WithTolerance(cfg.DriftTolerance),
		reconcile.WithSource(client.AudioURL),
		reconcile.WithStaleGuard(cfg.StaleGuard),
	)

	var viewerOpts []viewer.Option
	if opts.Headless {
		viewerOpts = append(viewerOpts, viewer.WithRenderHook(logRender))
	}
	v := viewer.New(player, rec, sess, viewerOpts...)
	defer v.Close()

	log.Info().
		Str("server", client.BaseURL()).
		Bool("headless", opts.Headless).
		Msg("jamdeck starting")

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run(ctx)
	}()

	if opts.Headless {
		err = runHeadless(ctx, v, sess.Events(), cfg.TickInterval, nil)
	} else {
		err = ui.Run(ui.Options{
			Context:    ctx,
			Viewer:     v,
			Events:     sess.Events(),
			Downloader: client,
			Server:     cfg.Server,
			LogPath:    cfg.LogFile,
			PrefsPath:  prefsPath,
			Prefs:      userPrefs,
			TickEvery:  cfg.TickInterval,
		})
	}

	cancel()
	wg.Wait()
	log.Info().Msg("jamdeck stopped")
	return err
}
