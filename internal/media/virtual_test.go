package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

type recorder struct {
	events []Event
}

func (r *recorder) record(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestClock(t *testing.T) (*Virtual, *clockwork.FakeClock, *recorder) {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	v := NewVirtual(WithClock(fake))
	rec := &recorder{}
	cancel := v.Subscribe(rec.record)
	t.Cleanup(cancel)
	return v, fake, rec
}

func TestVirtual_PlayWithoutSource(t *testing.T) {
	v, _, rec := newTestClock(t)
	if err := v.Play(); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Play error = %v, want ErrNoSource", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("events = %v, want none", rec.kinds())
	}
}

func TestVirtual_AdvancesOnlyWhilePlaying(t *testing.T) {
	v, fake, _ := newTestClock(t)
	v.Load("a.mp3")

	fake.Advance(5 * time.Second)
	if got := v.Position(); got != 0 {
		t.Fatalf("paused Position = %v, want 0", got)
	}

	if err := v.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	fake.Advance(3 * time.Second)
	if got := v.Position(); got != 3 {
		t.Fatalf("Position = %v, want 3", got)
	}

	v.Pause()
	fake.Advance(10 * time.Second)
	if got := v.Position(); got != 3 {
		t.Fatalf("Position after pause = %v, want 3", got)
	}
}

func TestVirtual_NotifiesSynchronously(t *testing.T) {
	v, _, rec := newTestClock(t)
	v.Load("a.mp3")
	_ = v.Play()
	_ = v.Play() // already playing, no event
	v.Seek(12)
	v.Pause()
	v.Pause() // already paused, no event

	want := []EventKind{Loaded, Played, Seeked, Paused}
	if diff := cmp.Diff(want, rec.kinds()); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}
	if rec.events[2].Position != 12 {
		t.Fatalf("Seeked position = %v, want 12", rec.events[2].Position)
	}
}

func TestVirtual_LoadResets(t *testing.T) {
	v, fake, _ := newTestClock(t)
	v.Load("a.mp3")
	v.SetDuration(100)
	_ = v.Play()
	fake.Advance(4 * time.Second)

	v.Load("b.mp3")
	if v.Playing() {
		t.Fatalf("Playing = true after Load, want false")
	}
	if got := v.Position(); got != 0 {
		t.Fatalf("Position = %v, want 0", got)
	}
	if _, ok := v.Duration(); ok {
		t.Fatalf("Duration known after Load, want unknown")
	}
	if v.Source() != "b.mp3" {
		t.Fatalf("Source = %q, want b.mp3", v.Source())
	}
}

func TestVirtual_SeekClampsToDuration(t *testing.T) {
	v, _, _ := newTestClock(t)
	v.Load("a.mp3")
	v.Seek(-4)
	if got := v.Position(); got != 0 {
		t.Fatalf("Position = %v, want 0", got)
	}
	v.Seek(500) // duration unknown: no upper clamp
	if got := v.Position(); got != 500 {
		t.Fatalf("Position = %v, want 500", got)
	}
	v.SetDuration(200)
	v.Seek(500)
	if got := v.Position(); got != 200 {
		t.Fatalf("Position = %v, want 200", got)
	}
}

func TestVirtual_PollEmitsDurationTimeUpdateAndEnded(t *testing.T) {
	v, fake, rec := newTestClock(t)
	v.Load("a.mp3")
	v.SetDuration(10)
	_ = v.Play()
	rec.events = nil

	fake.Advance(4 * time.Second)
	v.Poll()
	fake.Advance(10 * time.Second)
	v.Poll()
	v.Poll() // ended and paused: nothing more

	want := []EventKind{DurationChange, TimeUpdate, Ended}
	if diff := cmp.Diff(want, rec.kinds()); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}
	if rec.events[1].Position != 4 {
		t.Fatalf("TimeUpdate position = %v, want 4", rec.events[1].Position)
	}
	if v.Playing() {
		t.Fatalf("Playing = true after Ended")
	}
	if got := v.Position(); got != 10 {
		t.Fatalf("Position = %v, want 10", got)
	}
}

func TestVirtual_SubscribeCancel(t *testing.T) {
	v := NewVirtual(WithClock(clockwork.NewFakeClock()))
	var first, second int
	cancelFirst := v.Subscribe(func(Event) { first++ })
	v.Subscribe(func(Event) { second++ })

	v.Load("a.mp3")
	cancelFirst()
	v.Load("b.mp3")

	if first != 1 || second != 2 {
		t.Fatalf("first=%d second=%d, want 1 and 2", first, second)
	}
}

type stubProber struct {
	seconds float64
	err     error
	calls   chan string
}

func (p *stubProber) ProbeDuration(ctx context.Context, src string) (float64, error) {
	p.calls <- src
	return p.seconds, p.err
}

func TestVirtual_LoadProbesDuration(t *testing.T) {
	prober := &stubProber{seconds: 180, calls: make(chan string, 1)}
	v := NewVirtual(WithClock(clockwork.NewFakeClock()), WithProber(prober))
	defer v.Close()

	var changes int
	v.Subscribe(func(ev Event) {
		if ev.Kind == DurationChange {
			changes++
		}
	})

	v.Load("http://jam/audio/a.mp3")
	select {
	case src := <-prober.calls:
		if src != "http://jam/audio/a.mp3" {
			t.Fatalf("probe src = %q", src)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("prober was not called")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if d, ok := v.Duration(); ok {
			if d != 180 {
				t.Fatalf("Duration = %v, want 180", d)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("duration never became known")
		}
		time.Sleep(5 * time.Millisecond)
	}

	v.Poll()
	v.Poll()
	if changes != 1 {
		t.Fatalf("DurationChange fired %d times, want 1", changes)
	}
}

func TestVirtual_LoadEmptySourceSkipsProbe(t *testing.T) {
	prober := &stubProber{seconds: 1, calls: make(chan string, 1)}
	v := NewVirtual(WithClock(clockwork.NewFakeClock()), WithProber(prober))
	v.Load("")
	select {
	case src := <-prober.calls:
		t.Fatalf("unexpected probe for %q", src)
	case <-time.After(50 * time.Millisecond):
	}
}
