// Package logtail reads the tail of jamdeck's own log file and turns zerolog
// JSON lines into display text for the diagnostics pane.
//
// # Reading Log Files
//
// Read keeps a ring buffer of maxLines entries while scanning the file once,
// so memory is O(maxLines) regardless of file size:
//
//	lines, err := logtail.Read(cfg.LogFile, 200)
//
// A missing file yields nil, nil. The viewer may not have logged anything yet.
//
// # Parsing
//
// ParseLine understands the fields zerolog writes (time, level, message) and an
// optional component field. Everything else becomes a Detail, sorted by label.
// Lines that are not JSON objects pass through as plain messages.
//
// Entry.Format renders:
//
//	2026-01-02 15:04:05 WARN [session] – dropping malformed frame
//	    - connection_id: 5f0c2a...
//	    - error: malformed frame: missing type
package logtail
