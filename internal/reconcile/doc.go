// Package reconcile merges authoritative snapshots into the viewer's local
// playback state without fighting the local media clock.
//
// Apply compares the snapshot field by field and only touches the media clock
// where something differs:
//
//   - a new track is loaded (and restarted if the snapshot is playing)
//   - a changed play/pause flag calls Play or Pause; a Play failure is logged
//     and returned but the logical flag still follows the authority
//   - the position is extrapolated by the one-way latency when playing and a
//     seek is forced only when the clock has drifted beyond the tolerance
//     (0.5 s unless configured)
//   - queue and catalog are replaced wholesale
//
// Every media mutation happens inside a reconciliation pass. While a pass is
// active LocalState.SuppressFeedback is set, and listeners wrapped with Guard
// ignore the notifications the clock fires in response. The pass is closed by
// a deferred call, so the flag clears even when the clock panics.
//
// With the stale guard enabled (the default) a snapshot whose timestamp is not
// newer than the last applied one is discarded. ResetWatermark re-arms the
// guard for a new connection.
//
// A Reconciler has a single owner: the viewer's event loop. It does no
// locking.
package reconcile
