package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envServer, "")
	t.Setenv(envLogLevel, "")

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	wantLogFile, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	want := Config{
		Server:          defaultServer,
		ReconnectDelay:  3 * time.Second,
		DriftTolerance:  0.5,
		TickInterval:    250 * time.Millisecond,
		StaleGuard:      true,
		DownloadTimeout: 10 * time.Minute,
		LogFile:         wantLogFile,
		LogLevel:        "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envServer, "")
	t.Setenv(envLogLevel, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server = "  10.0.0.5:9999  "
reconnect_delay = "1s"
max_reconnect_delay = "30s"
drift_tolerance = 0.25
tick_interval = "100ms"
stale_guard = false
download_timeout = "2m"
log_file = "  ~/.jamdeck/debug.log  "
log_level = "DEBUG"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != "10.0.0.5:9999" {
		t.Fatalf("Server = %q, want %q", cfg.Server, "10.0.0.5:9999")
	}
	if cfg.ReconnectDelay != time.Second || cfg.MaxReconnectDelay != 30*time.Second {
		t.Fatalf("reconnect delays = %v/%v", cfg.ReconnectDelay, cfg.MaxReconnectDelay)
	}
	if cfg.DriftTolerance != 0.25 || cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("DriftTolerance = %v TickInterval = %v", cfg.DriftTolerance, cfg.TickInterval)
	}
	if cfg.StaleGuard {
		t.Fatalf("StaleGuard = true, want false")
	}
	if cfg.DownloadTimeout != 2*time.Minute {
		t.Fatalf("DownloadTimeout = %v, want 2m", cfg.DownloadTimeout)
	}
	if cfg.LogFile != filepath.Join(home, ".jamdeck", "debug.log") {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envServer, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server = "   "
reconnect_delay = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != defaultServer {
		t.Fatalf("Server = %q, want %q", cfg.Server, defaultServer)
	}
	if cfg.ReconnectDelay != defaultReconnectDelay {
		t.Fatalf("ReconnectDelay = %v, want %v", cfg.ReconnectDelay, defaultReconnectDelay)
	}
	if !cfg.StaleGuard {
		t.Fatalf("StaleGuard = false, want default true")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envServer, "jam.local:8000")
	t.Setenv(envLogLevel, "Warn")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = "10.0.0.5:9999"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != "jam.local:8000" || cfg.LogLevel != "warn" {
		t.Fatalf("Server = %q LogLevel = %q, want env values", cfg.Server, cfg.LogLevel)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	for name, body := range map[string]string{
		"bad duration":        `reconnect_delay = "soon"`,
		"negative duration":   `tick_interval = "-1s"`,
		"zero tolerance":      `drift_tolerance = 0.0`,
		"wrong type for bool": `stale_guard = "yes"`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %v, want parse config error", err)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
