// Package dispatch turns user intent into outbound commands.
//
// Each accepted intent produces exactly one Send. The dispatcher never touches
// local playback state; the next snapshot from the authority reflects the
// change.
package dispatch

import (
	"errors"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/protocol"
)

var (
	// ErrDurationUnknown means a seek was requested before the media length
	// was known.
	ErrDurationUnknown = errors.New("media duration unknown")
	// ErrNoTrack means a track intent named no track.
	ErrNoTrack = errors.New("no track selected")
)

// Sender delivers a command. It reports false when the command was dropped.
type Sender interface {
	Send(cmd protocol.Command) bool
}

// ClockReader is the read side of the media clock.
type ClockReader interface {
	Position() float64
	Duration() (float64, bool)
}

// PlayingFunc reports the logical play/pause flag.
type PlayingFunc func() bool

// Dispatcher maps intents to commands.
type Dispatcher struct {
	sender  Sender
	clock   ClockReader
	playing PlayingFunc
}

// New returns a Dispatcher. playing reads the reconciled play/pause flag.
func New(sender Sender, clock ClockReader, playing PlayingFunc) *Dispatcher {
	return &Dispatcher{sender: sender, clock: clock, playing: playing}
}

var _ ClockReader = media.Clock(nil)

// TogglePlayback pauses when playing, otherwise resumes from the clock's
// current position.
func (d *Dispatcher) TogglePlayback() (bool, error) {
	if d.playing() {
		return d.send(protocol.Pause{}), nil
	}
	return d.send(protocol.Play{Position: d.clock.Position()}), nil
}

// SeekFraction seeks to f of the duration. f is clamped to [0, 1].
func (d *Dispatcher) SeekFraction(f float64) (bool, error) {
	duration, ok := d.clock.Duration()
	if !ok || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return false, ErrDurationUnknown
	}
	if math.IsNaN(f) {
		f = 0
	}
	f = math.Min(1, math.Max(0, f))
	return d.send(protocol.Seek{Position: f * duration}), nil
}

// SeekBy seeks delta seconds from the current position, clamped to the media.
func (d *Dispatcher) SeekBy(delta float64) (bool, error) {
	duration, ok := d.clock.Duration()
	if !ok || duration <= 0 {
		return false, ErrDurationUnknown
	}
	target := math.Min(duration, math.Max(0, d.clock.Position()+delta))
	return d.send(protocol.Seek{Position: target}), nil
}

// PlayTrack switches to track.
func (d *Dispatcher) PlayTrack(track protocol.TrackID) (bool, error) {
	if track == "" {
		return false, ErrNoTrack
	}
	return d.send(protocol.PlayTrack{Track: track}), nil
}

// Enqueue appends track to the queue.
func (d *Dispatcher) Enqueue(track protocol.TrackID) (bool, error) {
	if track == "" {
		return false, ErrNoTrack
	}
	return d.send(protocol.Enqueue{Track: track}), nil
}

// Dequeue removes track from the queue.
func (d *Dispatcher) Dequeue(track protocol.TrackID) (bool, error) {
	if track == "" {
		return false, ErrNoTrack
	}
	return d.send(protocol.Dequeue{Track: track}), nil
}

// SkipNext advances to the head of the queue.
func (d *Dispatcher) SkipNext() (bool, error) {
	return d.send(protocol.SkipNext{}), nil
}

func (d *Dispatcher) send(cmd protocol.Command) bool {
	sent := d.sender.Send(cmd)
	if !sent {
		log.Debug().Str("command", cmd.Type()).Msg("command not delivered")
	}
	return sent
}
