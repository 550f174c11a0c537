// Package logging configures the global zerolog logger.
//
// The TUI owns the terminal, so interactive runs log JSON lines to a file
// (which the diagnostics pane tails). Headless runs additionally write a
// human-readable console stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the sinks and the level.
type Options struct {
	Level   string    // zerolog level name; empty means info
	Debug   bool      // forces debug regardless of Level
	File    string    // JSON sink; empty disables it
	Console io.Writer // console sink; nil disables it
}

// Setup installs the global logger and returns a function that closes the
// file sink.
func Setup(opts Options) (func() error, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	var writers []io.Writer
	closer := func() error { return nil }

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
		closer = file.Close
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.TimeOnly})
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func parseLevel(name string) (zerolog.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(trimmed)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level %q: %w", name, err)
	}
	return level, nil
}
