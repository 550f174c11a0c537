package media

import (
	"context"
	"errors"
)

// ErrNoSource is returned by Play when no media is loaded.
var ErrNoSource = errors.New("no media source loaded")

// EventKind enumerates media change notifications.
type EventKind int

const (
	Loaded EventKind = iota
	Played
	Paused
	Seeked
	TimeUpdate
	DurationChange
	Ended
)

func (k EventKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Played:
		return "played"
	case Paused:
		return "paused"
	case Seeked:
		return "seeked"
	case TimeUpdate:
		return "timeupdate"
	case DurationChange:
		return "durationchange"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a change notification. Position is the clock position when the
// event fired.
type Event struct {
	Kind     EventKind
	Position float64
}

// Clock is a controllable media clock. Implementations notify subscribers
// synchronously from Load, Play, Pause and Seek.
type Clock interface {
	Load(src string)
	Play() error
	Pause()
	Seek(pos float64)
	Position() float64
	// Duration reports the media length in seconds. ok is false until the
	// length is known.
	Duration() (seconds float64, ok bool)
	Subscribe(fn func(Event)) (cancel func())
}

// Prober resolves the duration of a media source.
type Prober interface {
	ProbeDuration(ctx context.Context, src string) (float64, error)
}
