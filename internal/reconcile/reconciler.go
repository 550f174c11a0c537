package reconcile

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/protocol"
)

// DefaultTolerance is the drift, in seconds, left uncorrected.
const DefaultTolerance = 0.5

// LocalState is the viewer's mirror of the authoritative snapshot.
type LocalState struct {
	CurrentTrack     protocol.TrackID
	IsPlaying        bool
	Position         float64 // expected position at the last applied snapshot
	Timestamp        float64
	Queue            []protocol.TrackID
	Catalog          []protocol.TrackID
	SuppressFeedback bool
}

// Change is a bit set describing what an Apply touched.
type Change uint8

const (
	ChangeTrack Change = 1 << iota
	ChangePlayState
	ChangeSeek
	ChangeLists
)

// Has reports whether every bit of f is set.
func (c Change) Has(f Change) bool { return c&f == f }

// Result describes one Apply.
type Result struct {
	Applied  bool
	Stale    bool
	Changes  Change
	Expected float64
	MediaErr error
}

// Reconciler merges snapshots into LocalState and drives the media clock. It
// is not safe for concurrent use; one event loop owns it.
type Reconciler struct {
	media      media.Clock
	clock      clockwork.Clock
	tolerance  float64
	source     func(protocol.TrackID) string
	staleGuard bool

	state        LocalState
	watermark    float64
	hasWatermark bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the wall clock used to extrapolate latency.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithTolerance sets the drift band in seconds. Non-positive values are ignored.
func WithTolerance(seconds float64) Option {
	return func(r *Reconciler) {
		if seconds > 0 {
			r.tolerance = seconds
		}
	}
}

// WithSource maps a track to the source handed to the media clock.
func WithSource(fn func(protocol.TrackID) string) Option {
	return func(r *Reconciler) { r.source = fn }
}

// WithStaleGuard enables or disables discarding out-of-order snapshots.
func WithStaleGuard(on bool) Option {
	return func(r *Reconciler) { r.staleGuard = on }
}

// New returns a Reconciler with empty state driving m.
func New(m media.Clock, opts ...Option) *Reconciler {
	r := &Reconciler{
		media:      m,
		clock:      clockwork.NewRealClock(),
		tolerance:  DefaultTolerance,
		source:     func(id protocol.TrackID) string { return string(id) },
		staleGuard: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the local state.
func (r *Reconciler) State() LocalState {
	st := r.state
	st.Queue = append([]protocol.TrackID(nil), r.state.Queue...)
	st.Catalog = append([]protocol.TrackID(nil), r.state.Catalog...)
	return st
}

// Suppressing reports whether a reconciliation pass is in progress.
func (r *Reconciler) Suppressing() bool {
	return r.state.SuppressFeedback
}

// Guard wraps a media listener so it ignores notifications caused by Apply.
func (r *Reconciler) Guard(fn func(media.Event)) func(media.Event) {
	return func(ev media.Event) {
		if r.state.SuppressFeedback {
			return
		}
		fn(ev)
	}
}

// ResetWatermark forgets the last applied timestamp. Call it when a new
// connection opens, since the authority may have restarted with an earlier
// clock.
func (r *Reconciler) ResetWatermark() {
	r.watermark = 0
	r.hasWatermark = false
}

// pass brackets every media mutation made by Apply.
type pass struct {
	r *Reconciler
}

func (r *Reconciler) begin() pass {
	r.state.SuppressFeedback = true
	return pass{r: r}
}

func (p pass) end() {
	p.r.state.SuppressFeedback = false
}

// Apply merges snap into the local state. With the stale guard on, a snapshot
// whose timestamp is not newer than the last one applied is discarded.
func (r *Reconciler) Apply(snap protocol.Snapshot) Result {
	if r.staleGuard && r.hasWatermark && snap.Timestamp <= r.watermark {
		log.Debug().
			Float64("timestamp", snap.Timestamp).
			Float64("watermark", r.watermark).
			Msg("discarding stale snapshot")
		return Result{Stale: true}
	}

	p := r.begin()
	defer p.end()

	res := Result{Applied: true}

	trackChanged := snap.CurrentTrack != r.state.CurrentTrack
	if trackChanged {
		r.state.CurrentTrack = snap.CurrentTrack
		src := ""
		if snap.HasTrack() {
			src = r.source(snap.CurrentTrack)
		}
		r.media.Load(src)
		res.Changes |= ChangeTrack
		log.Debug().Str("track", string(snap.CurrentTrack)).Msg("track changed")
	}

	// A load leaves the media paused, so a playing snapshot restarts it even
	// when the logical flag is unchanged.
	if snap.IsPlaying != r.state.IsPlaying || (trackChanged && snap.IsPlaying) {
		if snap.IsPlaying {
			if err := r.media.Play(); err != nil {
				res.MediaErr = err
				log.Warn().Err(err).Str("track", string(snap.CurrentTrack)).Msg("media refused to play")
			}
		} else {
			r.media.Pause()
		}
		if snap.IsPlaying != r.state.IsPlaying {
			res.Changes |= ChangePlayState
		}
		r.state.IsPlaying = snap.IsPlaying
	}

	expected := snap.Position
	if snap.IsPlaying {
		expected += math.Max(0, r.now()-snap.Timestamp)
	}
	res.Expected = expected
	if drift := math.Abs(r.media.Position() - expected); drift > r.tolerance {
		r.media.Seek(expected)
		res.Changes |= ChangeSeek
		log.Debug().Float64("expected", expected).Float64("drift", drift).Msg("drift corrected")
	}
	r.state.Position = expected
	r.state.Timestamp = snap.Timestamp

	r.state.Queue = append([]protocol.TrackID(nil), snap.Queue...)
	r.state.Catalog = append([]protocol.TrackID(nil), snap.Catalog...)
	res.Changes |= ChangeLists

	r.watermark = snap.Timestamp
	r.hasWatermark = true
	return res
}

func (r *Reconciler) now() float64 {
	return float64(r.clock.Now().UnixNano()) / float64(time.Second)
}
