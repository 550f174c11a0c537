package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/five82/jamdeck/internal/jamtest"
	"github.com/five82/jamdeck/internal/protocol"
)

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("events channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for session event")
	}
	return nil
}

func startSession(t *testing.T, cfg Config) (*Session, context.CancelFunc) {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		// drain so Run can exit even if a test stopped reading
		for range s.Events() {
		}
		<-done
	})
	return s, cancel
}

func TestNew_RequiresEndpoint(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("New returned nil error for empty endpoint")
	}
}

func TestSession_SendWhileClosedIsDropped(t *testing.T) {
	s, err := New(Config{Endpoint: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if s.Send(protocol.Pause{}) {
		t.Fatalf("Send returned true while closed")
	}
	if got := s.Status().State; got != Closed {
		t.Fatalf("State = %v, want closed", got)
	}
}

func TestSession_SnapshotsAndCommands(t *testing.T) {
	srv := jamtest.NewServer(t, jamtest.WithCatalog("a.mp3", "b.mp3"))
	s, _ := startSession(t, Config{Endpoint: srv.WebSocketURL()})

	connected, ok := nextEvent(t, s.Events()).(Connected)
	if !ok || connected.ConnectionID == "" {
		t.Fatalf("first event = %#v, want Connected with an id", connected)
	}
	status := s.Status()
	if status.State != Open || status.Attempt != 0 || status.ConnectionID != connected.ConnectionID {
		t.Fatalf("Status = %+v, want open with attempt 0", status)
	}

	initial, ok := nextEvent(t, s.Events()).(SnapshotReceived)
	if !ok {
		t.Fatalf("second event is not a snapshot")
	}
	if diff := cmp.Diff([]protocol.TrackID{"a.mp3", "b.mp3"}, initial.Snapshot.Catalog); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}

	if !s.Send(protocol.Enqueue{Track: "b.mp3"}) {
		t.Fatalf("Send returned false while open")
	}
	select {
	case cmd := <-srv.Commands():
		if diff := cmp.Diff(protocol.Command(protocol.Enqueue{Track: "b.mp3"}), cmd); diff != "" {
			t.Fatalf("command mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server never received the command")
	}

	update, ok := nextEvent(t, s.Events()).(SnapshotReceived)
	if !ok {
		t.Fatalf("expected a snapshot after the command")
	}
	if diff := cmp.Diff([]protocol.TrackID{"b.mp3"}, update.Snapshot.Queue); diff != "" {
		t.Fatalf("queue mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_MalformedAndUnknownFramesKeepConnection(t *testing.T) {
	srv := jamtest.NewServer(t)
	s, _ := startSession(t, Config{Endpoint: srv.WebSocketURL()})

	connected := nextEvent(t, s.Events()).(Connected)
	if _, ok := nextEvent(t, s.Events()).(SnapshotReceived); !ok {
		t.Fatalf("expected the initial snapshot")
	}

	srv.SendRaw([]byte(`{"type":`))
	srv.SendRaw([]byte(`{"type":"state_update","position":-5,"timestamp":1}`))
	srv.SendRaw([]byte(`{"type":"chat","text":"hello"}`))
	srv.Broadcast()

	ignored, ok := nextEvent(t, s.Events()).(FrameIgnored)
	if !ok || ignored.Type != "chat" {
		t.Fatalf("event = %#v, want FrameIgnored{chat}", ignored)
	}
	if _, ok := nextEvent(t, s.Events()).(SnapshotReceived); !ok {
		t.Fatalf("expected the snapshot after the ignored frames")
	}
	if got := s.Status(); got.State != Open || got.ConnectionID != connected.ConnectionID {
		t.Fatalf("Status = %+v, want the original connection still open", got)
	}
}

func TestSession_ReconnectsIndefinitely(t *testing.T) {
	srv := jamtest.NewServer(t)
	srv.Refuse(true)
	clock := clockwork.NewFakeClock()
	s, _ := startSession(t, Config{Endpoint: srv.WebSocketURL(), Clock: clock})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const failures = 6
	for i := 1; i <= failures; i++ {
		ev, ok := nextEvent(t, s.Events()).(Disconnected)
		if !ok {
			t.Fatalf("attempt %d: expected Disconnected", i)
		}
		if ev.Attempt != i || ev.RetryIn != defaultReconnectDelay || ev.Err == nil {
			t.Fatalf("attempt %d: Disconnected = %+v", i, ev)
		}
		if got := s.Status(); got.State != Closed || got.Attempt != i {
			t.Fatalf("attempt %d: Status = %+v", i, got)
		}
		if i == failures {
			srv.Refuse(false)
		}
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("reconnect timer never armed: %v", err)
		}
		clock.Advance(defaultReconnectDelay)
	}

	if _, ok := nextEvent(t, s.Events()).(Connected); !ok {
		t.Fatalf("expected Connected once the server accepts")
	}
	if got := s.Status().Attempt; got != 0 {
		t.Fatalf("Attempt after open = %d, want 0", got)
	}
	if got := srv.Attempts(); got != failures+1 {
		t.Fatalf("server saw %d attempts, want %d", got, failures+1)
	}
	if _, ok := nextEvent(t, s.Events()).(SnapshotReceived); !ok {
		t.Fatalf("expected the initial snapshot")
	}

	srv.DropConnections()
	ev, ok := nextEvent(t, s.Events()).(Disconnected)
	if !ok || ev.Attempt != 1 {
		t.Fatalf("after drop: event = %#v, want Disconnected attempt 1", ev)
	}
	if s.Send(protocol.SkipNext{}) {
		t.Fatalf("Send returned true while closed")
	}
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reconnect timer never armed: %v", err)
	}
	clock.Advance(defaultReconnectDelay)
	if _, ok := nextEvent(t, s.Events()).(Connected); !ok {
		t.Fatalf("expected a second Connected")
	}
}

func TestSession_RunClosesEventsOnCancel(t *testing.T) {
	srv := jamtest.NewServer(t)
	s, err := New(Config{Endpoint: srv.WebSocketURL()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	if _, ok := nextEvent(t, s.Events()).(Connected); !ok {
		t.Fatalf("expected Connected")
	}
	cancel()
	for range s.Events() {
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if got := s.Status().State; got != Closed {
		t.Fatalf("State = %v, want closed", got)
	}
}
