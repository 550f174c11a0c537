// Package viewer is the single event loop core of jamdeck.
//
// A Viewer owns the reconciler, the dispatcher, the media clock subscription
// and the current view. Session goroutines never touch it directly; they
// deliver ordered events that the owning loop (the bubbletea update loop or
// the headless loop in package app) passes to HandleSession. Each applied
// snapshot produces exactly one full projection; stale snapshots produce
// none. Tick advances the media clock, and the notifications it causes
// refresh only the progress readout. Notifications fired during a
// reconciliation pass are filtered out by the reconciler's guard.
package viewer
