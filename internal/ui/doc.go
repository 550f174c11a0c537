// Package ui provides the terminal player for jamdeck.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model owns a viewer.Viewer and is the only
// goroutine that touches it: session events, media ticks and key presses all
// arrive as tea messages and are handled in order inside Update. Session
// events are pulled from the session channel one at a time, so snapshots are
// applied in the order the server sent them.
//
// Nothing the user does changes local playback state directly. Key presses
// and clicks become commands through the viewer's dispatcher, and the screen
// only changes when the server's next snapshot comes back.
//
// # Screen Layout
//
//   - Header: logo, connection state, retry countdown while disconnected
//   - Now playing: transport glyph and current title
//   - Progress: elapsed time, clickable bar, total duration
//   - Panes: library and queue side by side, or the diagnostics log
//   - Status line: transient messages, or the download URL prompt
//   - Command bar: key hints and the active theme
//
// # Key Bindings
//
// Playback:
//   - space: play/pause
//   - n: next in queue
//   - left/right: seek by the configured step
//   - 0-9: seek to 0%-90%
//
// Lists:
//   - tab: switch between library and queue
//   - enter: play selected
//   - a: add library song to queue
//   - x/d: remove queue entry
//   - j/k, g/G: navigate
//
// General:
//   - u: download a song from a URL
//   - L: toggle diagnostics log
//   - T: cycle theme
//   - h/?: help
//   - e/ctrl+c: quit
//
// # Styling
//
// Colors come from Theme; BgStyle paints every cell of a styled segment so
// pane backgrounds have no gaps. The chosen theme is saved to the prefs file.
package ui
