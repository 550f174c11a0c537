// Package media models playback as a controllable clock.
//
// The Clock interface is the contract the reconciler drives: load a source,
// play, pause, seek, read position and duration, and subscribe to change
// notifications. Notifications from Load, Play, Pause and Seek are delivered
// synchronously on the caller's goroutine, so a caller that mutates the clock
// observes its own changes echoed back before the call returns.
//
// Virtual is the implementation jamdeck uses. It keeps an anchor position and
// the wall time it was taken at; while playing, position is the anchor plus
// elapsed time. Time comes from a clockwork.Clock so tests can drive it.
// Poll is the periodic time-advance tick and is where TimeUpdate, Ended and
// DurationChange are produced.
//
// ProbeMP3 estimates a track's length from its first MPEG frame header and
// byte size. jamapi uses it with an HTTP range request to implement Prober.
package media
