package media

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Virtual is a media clock that advances with wall time while playing. It
// does not decode audio; position, duration and transport state are the whole
// model. Durations come from an optional Prober.
type Virtual struct {
	clock  clockwork.Clock
	prober Prober

	mu            sync.Mutex
	src           string
	generation    uint64
	playing       bool
	anchorPos     float64
	anchorAt      time.Time
	duration      float64
	known         bool
	durationDirty bool
	cancelProbe   context.CancelFunc

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(Event)
}

// Option configures a Virtual clock.
type Option func(*Virtual)

// WithClock sets the time source. Tests pass a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(v *Virtual) { v.clock = c }
}

// WithProber sets the duration prober used after each Load.
func WithProber(p Prober) Option {
	return func(v *Virtual) { v.prober = p }
}

// NewVirtual returns a paused clock with nothing loaded.
func NewVirtual(opts ...Option) *Virtual {
	v := &Virtual{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(v)
	}
	v.anchorAt = v.clock.Now()
	return v
}

// Source returns the currently loaded source.
func (v *Virtual) Source() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.src
}

// Load points the clock at src, resetting it to a paused position 0 with an
// unknown duration. A probe for the new duration starts in the background.
func (v *Virtual) Load(src string) {
	v.mu.Lock()
	if v.cancelProbe != nil {
		v.cancelProbe()
		v.cancelProbe = nil
	}
	v.generation++
	v.src = src
	v.playing = false
	v.anchorPos = 0
	v.anchorAt = v.clock.Now()
	v.duration = 0
	v.known = false
	v.durationDirty = false
	if src != "" && v.prober != nil {
		ctx, cancel := context.WithCancel(context.Background())
		v.cancelProbe = cancel
		go v.probe(ctx, v.generation, src)
	}
	v.mu.Unlock()

	v.notify(Event{Kind: Loaded})
}

func (v *Virtual) probe(ctx context.Context, generation uint64, src string) {
	seconds, err := v.prober.ProbeDuration(ctx, src)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("source", src).Msg("duration probe failed")
		}
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != generation {
		return
	}
	v.setDurationLocked(seconds)
}

// SetDuration records the media length. DurationChange fires on the next Poll.
func (v *Virtual) SetDuration(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setDurationLocked(seconds)
}

func (v *Virtual) setDurationLocked(seconds float64) {
	if seconds <= 0 {
		return
	}
	v.duration = seconds
	v.known = true
	v.durationDirty = true
}

// Play starts the clock from its current position.
func (v *Virtual) Play() error {
	v.mu.Lock()
	if v.src == "" {
		v.mu.Unlock()
		return ErrNoSource
	}
	if v.playing {
		v.mu.Unlock()
		return nil
	}
	v.anchorAt = v.clock.Now()
	v.playing = true
	pos := v.anchorPos
	v.mu.Unlock()

	v.notify(Event{Kind: Played, Position: pos})
	return nil
}

// Pause freezes the clock.
func (v *Virtual) Pause() {
	v.mu.Lock()
	if !v.playing {
		v.mu.Unlock()
		return
	}
	v.anchorPos = v.positionLocked()
	v.anchorAt = v.clock.Now()
	v.playing = false
	pos := v.anchorPos
	v.mu.Unlock()

	v.notify(Event{Kind: Paused, Position: pos})
}

// Seek moves the position, clamped to [0, duration] when the duration is known.
func (v *Virtual) Seek(pos float64) {
	v.mu.Lock()
	if pos < 0 {
		pos = 0
	}
	if v.known && pos > v.duration {
		pos = v.duration
	}
	v.anchorPos = pos
	v.anchorAt = v.clock.Now()
	v.mu.Unlock()

	v.notify(Event{Kind: Seeked, Position: pos})
}

// Position returns the current position in seconds.
func (v *Virtual) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionLocked()
}

func (v *Virtual) positionLocked() float64 {
	pos := v.anchorPos
	if v.playing {
		pos += v.clock.Since(v.anchorAt).Seconds()
	}
	if v.known && pos > v.duration {
		pos = v.duration
	}
	return pos
}

// Duration reports the media length once known.
func (v *Virtual) Duration() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.duration, v.known
}

// Playing reports whether the clock is advancing.
func (v *Virtual) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Poll is the time-advance tick. It emits DurationChange once after a probe
// lands, TimeUpdate while playing, and Ended once when the position reaches
// the duration, after which the clock is paused.
func (v *Virtual) Poll() {
	var events []Event

	v.mu.Lock()
	pos := v.positionLocked()
	if v.durationDirty {
		v.durationDirty = false
		events = append(events, Event{Kind: DurationChange, Position: pos})
	}
	if v.playing {
		if v.known && pos >= v.duration {
			v.anchorPos = v.duration
			v.anchorAt = v.clock.Now()
			v.playing = false
			events = append(events, Event{Kind: Ended, Position: v.duration})
		} else {
			events = append(events, Event{Kind: TimeUpdate, Position: pos})
		}
	}
	v.mu.Unlock()

	v.notify(events...)
}

// Subscribe registers fn for change notifications. Listeners run on the
// goroutine that caused the change, after the clock's lock is released.
func (v *Virtual) Subscribe(fn func(Event)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextID++
	id := v.nextID
	v.listeners = append(v.listeners, listener{id: id, fn: fn})
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, l := range v.listeners {
			if l.id == id {
				v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close stops any in-flight duration probe.
func (v *Virtual) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancelProbe != nil {
		v.cancelProbe()
		v.cancelProbe = nil
	}
}

func (v *Virtual) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	v.mu.Lock()
	fns := make([]func(Event), len(v.listeners))
	for i, l := range v.listeners {
		fns[i] = l.fn
	}
	v.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

var _ Clock = (*Virtual)(nil)
