package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/protocol"
)

// fakeMedia records every directive and echoes each one to its listeners
// synchronously, the way a real media element would.
type fakeMedia struct {
	calls     []string
	src       string
	playing   bool
	position  float64
	playErr   error
	panicSeek bool
	listeners []func(media.Event)
}

func (f *fakeMedia) emit(kind media.EventKind) {
	for _, fn := range f.listeners {
		fn(media.Event{Kind: kind, Position: f.position})
	}
}

func (f *fakeMedia) Load(src string) {
	f.calls = append(f.calls, "load:"+src)
	f.src, f.playing, f.position = src, false, 0
	f.emit(media.Loaded)
}

func (f *fakeMedia) Play() error {
	f.calls = append(f.calls, "play")
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	f.emit(media.Played)
	return nil
}

func (f *fakeMedia) Pause() {
	f.calls = append(f.calls, "pause")
	f.playing = false
	f.emit(media.Paused)
}

func (f *fakeMedia) Seek(pos float64) {
	f.calls = append(f.calls, "seek")
	if f.panicSeek {
		panic("media element detached")
	}
	f.position = pos
	f.emit(media.Seeked)
	f.emit(media.TimeUpdate)
}

func (f *fakeMedia) Position() float64 { return f.position }
func (f *fakeMedia) Duration() (float64, bool) { return 200, true }
func (f *fakeMedia) Subscribe(fn func(media.Event)) func() {
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeMedia) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

var epoch = time.Unix(1_700_000_000, 0)

const epochSeconds = 1_700_000_000.0

func newReconciler(m media.Clock, opts ...Option) (*Reconciler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(epoch)
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(m, opts...), clock
}

func TestApply_EndToEndFirstSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	v := media.NewVirtual(media.WithClock(clock))
	r := New(v, WithClock(clock))

	clock.Advance(2 * time.Second)
	res := r.Apply(protocol.Snapshot{
		CurrentTrack: "a.mp3",
		IsPlaying:    true,
		Position:     10,
		Timestamp:    epochSeconds,
	})

	if !res.Applied || res.Stale {
		t.Fatalf("Result = %+v, want applied", res)
	}
	if got := v.Position(); got != 12.0 {
		t.Fatalf("media position = %v, want 12.0", got)
	}
	if !v.Playing() {
		t.Fatalf("media not playing")
	}
	if v.Source() != "a.mp3" {
		t.Fatalf("media source = %q, want a.mp3", v.Source())
	}
	for _, c := range []Change{ChangeTrack, ChangePlayState, ChangeSeek, ChangeLists} {
		if !res.Changes.Has(c) {
			t.Fatalf("Changes = %b, missing %b", res.Changes, c)
		}
	}
	st := r.State()
	if st.CurrentTrack != "a.mp3" || !st.IsPlaying || st.SuppressFeedback {
		t.Fatalf("State = %+v", st)
	}
}

func TestApply_Convergence(t *testing.T) {
	m := &fakeMedia{}
	r, clock := newReconciler(m, WithSource(func(id protocol.TrackID) string { return "http://jam/audio/" + string(id) }))

	snaps := []protocol.Snapshot{
		{CurrentTrack: "a.mp3", IsPlaying: true, Position: 0, Timestamp: epochSeconds, Queue: []protocol.TrackID{"b.mp3"}, Catalog: []protocol.TrackID{"a.mp3", "b.mp3"}},
		{CurrentTrack: "a.mp3", IsPlaying: false, Position: 30, Timestamp: epochSeconds + 30, Queue: []protocol.TrackID{"b.mp3", "c.mp3"}, Catalog: []protocol.TrackID{"a.mp3", "b.mp3", "c.mp3"}},
		{CurrentTrack: "b.mp3", IsPlaying: true, Position: 0, Timestamp: epochSeconds + 31, Queue: []protocol.TrackID{"c.mp3"}, Catalog: []protocol.TrackID{"a.mp3", "b.mp3", "c.mp3"}},
		{CurrentTrack: "", IsPlaying: false, Position: 0, Timestamp: epochSeconds + 40, Queue: nil, Catalog: []protocol.TrackID{"c.mp3"}},
	}
	for _, snap := range snaps {
		clock.Advance(time.Second)
		r.Apply(snap)
	}

	last := snaps[len(snaps)-1]
	got := r.State()
	want := LocalState{
		CurrentTrack: last.CurrentTrack,
		IsPlaying:    last.IsPlaying,
		Position:     got.Position,
		Timestamp:    last.Timestamp,
		Queue:        nil,
		Catalog:      last.Catalog,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	if m.src != "" {
		t.Fatalf("media source = %q, want empty after track cleared", m.src)
	}
	if m.count("load:http://jam/audio/b.mp3") != 1 {
		t.Fatalf("calls = %v, want one load of b.mp3 via source mapping", m.calls)
	}
}

func TestApply_DriftWithinToleranceLeavesClock(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m)
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: false, Position: 50, Timestamp: epochSeconds})
	m.calls = nil

	m.position = 50.4
	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: false, Position: 50, Timestamp: epochSeconds + 1})
	if m.count("seek") != 0 {
		t.Fatalf("calls = %v, want no seek within tolerance", m.calls)
	}
	if res.Changes.Has(ChangeSeek) {
		t.Fatalf("ChangeSeek set within tolerance")
	}
	if m.position != 50.4 {
		t.Fatalf("position = %v, want undisturbed 50.4", m.position)
	}
}

func TestApply_DriftBeyondToleranceSeeksExactly(t *testing.T) {
	m := &fakeMedia{}
	r, clock := newReconciler(m)
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 0, Timestamp: epochSeconds})
	m.calls = nil

	clock.Advance(3 * time.Second)
	m.position = 40
	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 42, Timestamp: epochSeconds + 2})
	if m.count("seek") != 1 {
		t.Fatalf("calls = %v, want exactly one seek", m.calls)
	}
	if m.position != 43 || res.Expected != 43 {
		t.Fatalf("position = %v expected = %v, want 43", m.position, res.Expected)
	}
}

func TestApply_CustomTolerance(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m, WithTolerance(2))
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Position: 10, Timestamp: epochSeconds})
	m.calls = nil
	m.position = 11.5
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Position: 10, Timestamp: epochSeconds + 1})
	if m.count("seek") != 0 {
		t.Fatalf("calls = %v, want no seek inside a 2s band", m.calls)
	}
}

func TestApply_NegativeLatencyClamped(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m)
	// authority clock five seconds ahead of ours
	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 20, Timestamp: epochSeconds + 5})
	if res.Expected != 20 {
		t.Fatalf("Expected = %v, want 20 with latency clamped to zero", res.Expected)
	}
}

func TestApply_PausedSnapshotUsesRawPosition(t *testing.T) {
	m := &fakeMedia{}
	r, clock := newReconciler(m)
	clock.Advance(10 * time.Second)
	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: false, Position: 7, Timestamp: epochSeconds})
	if res.Expected != 7 || m.position != 7 {
		t.Fatalf("Expected = %v position = %v, want 7", res.Expected, m.position)
	}
}

func TestApply_NoOpElision(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m)
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 0, Timestamp: epochSeconds})
	m.calls = nil

	for i := 1; i <= 3; i++ {
		res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 0, Timestamp: epochSeconds + float64(i)/10})
		if res.Changes.Has(ChangePlayState) {
			t.Fatalf("ChangePlayState set for unchanged flag")
		}
	}
	if m.count("play") != 0 || m.count("pause") != 0 {
		t.Fatalf("calls = %v, want no play or pause", m.calls)
	}
}

func TestApply_TrackChangeRestartsPlayingMedia(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m)
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Timestamp: epochSeconds})
	m.calls = nil

	res := r.Apply(protocol.Snapshot{CurrentTrack: "b.mp3", IsPlaying: true, Timestamp: epochSeconds + 1})
	if diff := cmp.Diff([]string{"load:b.mp3", "play"}, m.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if res.Changes.Has(ChangePlayState) {
		t.Fatalf("ChangePlayState set although the flag did not change")
	}
	if !m.playing {
		t.Fatalf("media not playing after hard switch")
	}
}

func TestApply_PlayFailureKeepsLogicalFlag(t *testing.T) {
	blocked := errors.New("autoplay blocked")
	m := &fakeMedia{playErr: blocked}
	r, _ := newReconciler(m)

	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Timestamp: epochSeconds})
	if !errors.Is(res.MediaErr, blocked) {
		t.Fatalf("MediaErr = %v, want %v", res.MediaErr, blocked)
	}
	if !r.State().IsPlaying {
		t.Fatalf("IsPlaying rolled back after media error")
	}
}

func TestApply_StaleSnapshotsDiscarded(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m)
	r.Apply(protocol.Snapshot{CurrentTrack: "b.mp3", Timestamp: epochSeconds + 10})
	m.calls = nil

	for _, ts := range []float64{epochSeconds + 10, epochSeconds + 9} {
		res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Timestamp: ts})
		if !res.Stale || res.Applied {
			t.Fatalf("timestamp %v: Result = %+v, want stale", ts, res)
		}
	}
	if len(m.calls) != 0 || r.State().CurrentTrack != "b.mp3" {
		t.Fatalf("stale snapshot touched state: calls=%v state=%+v", m.calls, r.State())
	}

	r.ResetWatermark()
	if res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Timestamp: 5}); !res.Applied {
		t.Fatalf("snapshot after ResetWatermark was not applied")
	}
}

func TestApply_StaleGuardDisabled(t *testing.T) {
	m := &fakeMedia{}
	r, _ := newReconciler(m, WithStaleGuard(false))
	r.Apply(protocol.Snapshot{CurrentTrack: "b.mp3", Timestamp: epochSeconds + 10})
	res := r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Timestamp: epochSeconds})
	if !res.Applied || r.State().CurrentTrack != "a.mp3" {
		t.Fatalf("older snapshot not applied with guard off: %+v", res)
	}
}

type recordingSender struct {
	sent []protocol.Command
}

func (s *recordingSender) Send(cmd protocol.Command) bool {
	s.sent = append(s.sent, cmd)
	return true
}

func TestApply_NoFeedbackLoop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	v := media.NewVirtual(media.WithClock(clock))
	v.SetDuration(300)
	r := New(v, WithClock(clock))

	// A naive progress handler that treats any position change as a user scrub.
	sender := &recordingSender{}
	v.Subscribe(r.Guard(func(ev media.Event) {
		if ev.Kind == media.Seeked {
			sender.Send(protocol.Seek{Position: ev.Position})
		}
	}))
	var seenDuringPass int
	v.Subscribe(func(media.Event) {
		if r.Suppressing() {
			seenDuringPass++
		}
	})

	clock.Advance(5 * time.Second)
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: true, Position: 60, Timestamp: epochSeconds})
	r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", IsPlaying: false, Position: 120, Timestamp: epochSeconds + 1})

	if seenDuringPass == 0 {
		t.Fatalf("media emitted nothing during Apply; the test would prove nothing")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("commands sent during Apply: %v", sender.sent)
	}

	// Outside a pass the same handler does fire.
	v.Seek(30)
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want one user seek", sender.sent)
	}
}

func TestApply_PanicStillClearsSuppression(t *testing.T) {
	m := &fakeMedia{panicSeek: true}
	r, _ := newReconciler(m)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected the media panic to propagate")
			}
		}()
		r.Apply(protocol.Snapshot{CurrentTrack: "a.mp3", Position: 90, Timestamp: epochSeconds})
	}()

	if r.Suppressing() {
		t.Fatalf("SuppressFeedback still set after a panicking pass")
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	r, _ := newReconciler(&fakeMedia{})
	r.Apply(protocol.Snapshot{Queue: []protocol.TrackID{"a"}, Catalog: []protocol.TrackID{"a"}, Timestamp: epochSeconds})
	st := r.State()
	st.Queue[0] = "z"
	if r.State().Queue[0] != "a" {
		t.Fatalf("State shares its queue slice")
	}
}
