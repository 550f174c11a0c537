package session

import (
	"time"

	"github.com/five82/jamdeck/internal/protocol"
)

// State is the connection lifecycle state.
type State int

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of the connection state.
type Status struct {
	State        State
	Attempt      int
	ConnectionID string
	LastError    error
	ConnectedAt  time.Time
	RetryAt      time.Time
}

// Event is delivered on the Events channel, in the order things happened.
type Event interface {
	sessionEvent()
}

// Connected fires when a connection opens.
type Connected struct {
	ConnectionID string
}

// Disconnected fires when a connection closes or a dial fails. Attempt counts
// consecutive failures; RetryIn is the wait before the next dial.
type Disconnected struct {
	Err     error
	Attempt int
	RetryIn time.Duration
}

// SnapshotReceived carries one state_update frame.
type SnapshotReceived struct {
	Snapshot protocol.Snapshot
}

// FrameIgnored reports a well-formed frame of an unknown type.
type FrameIgnored struct {
	Type string
}

func (Connected) sessionEvent()        {}
func (Disconnected) sessionEvent()     {}
func (SnapshotReceived) sessionEvent() {}
func (FrameIgnored) sessionEvent()     {}
