package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds jamdeck's settings.
type Config struct {
	Server            string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration // zero keeps the reconnect delay fixed
	DriftTolerance    float64       // seconds
	TickInterval      time.Duration
	StaleGuard        bool
	DownloadTimeout   time.Duration
	LogFile           string
	LogLevel          string
}

const (
	defaultConfigPath      = "~/.config/jamdeck/config.toml"
	defaultServer          = "127.0.0.1:8000"
	defaultReconnectDelay  = 3 * time.Second
	defaultDriftTolerance  = 0.5
	defaultTickInterval    = 250 * time.Millisecond
	defaultDownloadTimeout = 10 * time.Minute
	defaultLogFile         = "~/.local/share/jamdeck/jamdeck.log"
	defaultLogLevel        = "info"

	envServer   = "JAMDECK_SERVER"
	envLogLevel = "JAMDECK_LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:          defaultServer,
		ReconnectDelay:  defaultReconnectDelay,
		DriftTolerance:  defaultDriftTolerance,
		TickInterval:    defaultTickInterval,
		StaleGuard:      true,
		DownloadTimeout: defaultDownloadTimeout,
		LogFile:         mustExpand(defaultLogFile),
		LogLevel:        defaultLogLevel,
	}
}

type rawConfig struct {
	Server            string   `toml:"server"`
	ReconnectDelay    string   `toml:"reconnect_delay"`
	MaxReconnectDelay string   `toml:"max_reconnect_delay"`
	DriftTolerance    *float64 `toml:"drift_tolerance"`
	TickInterval      string   `toml:"tick_interval"`
	StaleGuard        *bool    `toml:"stale_guard"`
	DownloadTimeout   string   `toml:"download_timeout"`
	LogFile           string   `toml:"log_file"`
	LogLevel          string   `toml:"log_level"`
}

// Load reads the config at path (or the default location), falling back to
// defaults when the file is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if server := strings.TrimSpace(raw.Server); server != "" {
		cfg.Server = server
	}
	if cfg.ReconnectDelay, err = parseDuration("reconnect_delay", raw.ReconnectDelay, cfg.ReconnectDelay); err != nil {
		return Config{}, err
	}
	if cfg.MaxReconnectDelay, err = parseDuration("max_reconnect_delay", raw.MaxReconnectDelay, 0); err != nil {
		return Config{}, err
	}
	if cfg.TickInterval, err = parseDuration("tick_interval", raw.TickInterval, cfg.TickInterval); err != nil {
		return Config{}, err
	}
	if cfg.DownloadTimeout, err = parseDuration("download_timeout", raw.DownloadTimeout, cfg.DownloadTimeout); err != nil {
		return Config{}, err
	}
	if raw.DriftTolerance != nil {
		if *raw.DriftTolerance <= 0 {
			return Config{}, fmt.Errorf("parse config: drift_tolerance must be positive, got %v", *raw.DriftTolerance)
		}
		cfg.DriftTolerance = *raw.DriftTolerance
	}
	if raw.StaleGuard != nil {
		cfg.StaleGuard = *raw.StaleGuard
	}
	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}
	if level := strings.TrimSpace(raw.LogLevel); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if server := strings.TrimSpace(os.Getenv(envServer)); server != "" {
		cfg.Server = server
	}
	if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse config: %s must be positive, got %s", key, trimmed)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
