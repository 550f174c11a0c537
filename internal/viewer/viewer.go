package viewer

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/dispatch"
	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/reconcile"
	"github.com/five82/jamdeck/internal/render"
	"github.com/five82/jamdeck/internal/session"
)

// Connectivity is what the connection indicator shows.
type Connectivity struct {
	State        session.State
	Attempt      int
	RetryIn      time.Duration
	RetryAt      time.Time
	ConnectionID string
	LastError    error
}

// RenderKind distinguishes a full projection from a progress refresh.
type RenderKind int

const (
	RenderFull RenderKind = iota
	RenderProgress
)

func (k RenderKind) String() string {
	if k == RenderProgress {
		return "progress"
	}
	return "full"
}

// Render is passed to the render hook after each projection.
type Render struct {
	Kind RenderKind
	Ops  render.ViewOps
}

// Poller is implemented by media clocks that advance on an explicit tick.
type Poller interface {
	Poll()
}

// Viewer owns the reconciler, dispatcher, media clock and current view. All
// methods must be called from one goroutine.
type Viewer struct {
	media    media.Clock
	rec      *reconcile.Reconciler
	dispatch *dispatch.Dispatcher
	clock    clockwork.Clock
	onRender func(Render)

	ops          render.ViewOps
	conn         Connectivity
	ignored      int
	applied      int
	stale        int
	lastMediaErr error
	unsubscribe  func()
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithRenderHook registers fn to observe every projection.
func WithRenderHook(fn func(Render)) Option {
	return func(v *Viewer) { v.onRender = fn }
}

// WithClock sets the clock used for retry countdowns.
func WithClock(c clockwork.Clock) Option {
	return func(v *Viewer) { v.clock = c }
}

// New wires a viewer around m and rec. Commands go to sender.
func New(m media.Clock, rec *reconcile.Reconciler, sender dispatch.Sender, opts ...Option) *Viewer {
	v := &Viewer{
		media: m,
		rec:   rec,
		clock: clockwork.NewRealClock(),
		conn:  Connectivity{State: session.Connecting},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.dispatch = dispatch.New(sender, m, func() bool { return v.rec.State().IsPlaying })
	v.unsubscribe = m.Subscribe(rec.Guard(v.onMedia))
	v.ops = render.Project(rec.State(), m)
	return v
}

// Close detaches from the media clock.
func (v *Viewer) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}

// Dispatch returns the intent dispatcher.
func (v *Viewer) Dispatch() *dispatch.Dispatcher { return v.dispatch }

// Ops returns the current view.
func (v *Viewer) Ops() render.ViewOps { return v.ops }

// Connectivity returns the connection indicator state.
func (v *Viewer) Connectivity() Connectivity { return v.conn }

// State returns the reconciled local state.
func (v *Viewer) State() reconcile.LocalState { return v.rec.State() }

// Stats reports how many snapshots were applied or discarded as stale and how
// many frames were ignored.
func (v *Viewer) Stats() (applied, stale, ignored int) {
	return v.applied, v.stale, v.ignored
}

// LastMediaError returns the most recent play failure, if any.
func (v *Viewer) LastMediaError() error { return v.lastMediaErr }

// HandleSession processes one session event. It reports whether the view
// changed.
func (v *Viewer) HandleSession(ev session.Event) bool {
	switch e := ev.(type) {
	case session.Connected:
		v.conn = Connectivity{State: session.Open, ConnectionID: e.ConnectionID}
		v.rec.ResetWatermark()
		return true
	case session.Disconnected:
		v.conn = Connectivity{
			State:     session.Closed,
			Attempt:   e.Attempt,
			RetryIn:   e.RetryIn,
			RetryAt:   v.clock.Now().Add(e.RetryIn),
			LastError: e.Err,
		}
		return true
	case session.SnapshotReceived:
		res := v.rec.Apply(e.Snapshot)
		if res.Stale {
			v.stale++
			return false
		}
		v.applied++
		if res.MediaErr != nil {
			v.lastMediaErr = res.MediaErr
		}
		v.ops = render.Project(v.rec.State(), v.media)
		v.emit(RenderFull)
		return true
	case session.FrameIgnored:
		v.ignored++
		return false
	default:
		log.Debug().Msgf("viewer: unhandled session event %T", ev)
		return false
	}
}

// Tick advances the media clock. Resulting notifications refresh progress.
func (v *Viewer) Tick() {
	if p, ok := v.media.(Poller); ok {
		p.Poll()
	}
}

// onMedia runs for media notifications outside a reconciliation pass.
func (v *Viewer) onMedia(ev media.Event) {
	switch ev.Kind {
	case media.TimeUpdate, media.DurationChange, media.Seeked, media.Ended:
		v.ops.Progress = render.ProjectProgress(v.media)
		v.emit(RenderProgress)
	}
}

func (v *Viewer) emit(kind RenderKind) {
	if v.onRender != nil {
		v.onRender(Render{Kind: kind, Ops: v.ops})
	}
}
