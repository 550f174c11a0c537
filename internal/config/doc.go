// Package config loads jamdeck's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/jamdeck/config.toml (default)
//  3. If the config file doesn't exist, fall back to built-in defaults
//  4. If the file exists but fields are missing or empty, use defaults
//  5. JAMDECK_SERVER and JAMDECK_LOG_LEVEL override whatever was loaded
//
// # Default Values
//
//   - Config file: ~/.config/jamdeck/config.toml
//   - Server: 127.0.0.1:8000
//   - Reconnect delay: 3s, fixed (no max_reconnect_delay)
//   - Drift tolerance: 0.5 seconds
//   - Progress tick: 250ms
//   - Stale snapshot guard: enabled
//   - Download timeout: 10m
//   - Log file: ~/.local/share/jamdeck/jamdeck.log
//   - Log level: info
//
// # TOML Format
//
//	server = "192.168.1.20:8000"
//	reconnect_delay = "3s"
//	max_reconnect_delay = "30s"
//	drift_tolerance = 0.5
//	tick_interval = "250ms"
//	stale_guard = true
//	download_timeout = "10m"
//	log_file = "~/.local/share/jamdeck/jamdeck.log"
//	log_level = "debug"
//
// Durations use Go duration syntax and must be positive. Setting
// max_reconnect_delay above reconnect_delay switches reconnects from a fixed
// delay to exponential backoff capped at that value.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML syntax errors and invalid values. A missing file is
// not an error.
package config
