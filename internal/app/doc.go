// Package app provides the orchestration layer for jamdeck.
//
// # Overview
//
// This package wires configuration, logging, the server session, the media
// clock and the viewer together, then hands control to either the TUI or the
// headless loop. It is the composition root: every dependency is built here.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read config.toml and env overrides
//	       ├─────> logging.Setup()      Global zerolog logger
//	       ├─────> jamapi.NewClient()   HTTP client (audio, downloads, probes)
//	       ├─────> session.New()        WebSocket session with reconnect
//	       ├─────> media.NewVirtual()   Media clock, probing durations over HTTP
//	       ├─────> reconcile.New()      Snapshot reconciler
//	       ├─────> viewer.New()         View state and intent dispatch
//	       ├─────> go session.Run()     Connect and stream events
//	       └─────> ui.Run() or runHeadless()   (blocks)
//
// # Headless Mode
//
// With Options.Headless the TUI is skipped. runHeadless pulls session events
// and media ticks on one goroutine, the same way the TUI does, and the viewer's
// render hook logs each projection to the console.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration file or values
//   - Log file cannot be opened
//   - Invalid server address
//
// Everything after startup is recoverable: the session reconnects on its own
// and preference failures are logged and ignored.
package app
