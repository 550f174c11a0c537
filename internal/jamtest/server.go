// Package jamtest runs an in-process jam authority for tests.
//
// Server applies commands with the same rules as the real authority: play
// and seek re-anchor the position, add_to_queue requires an available track
// that is not already queued, play_song and next_song restart from zero. Every
// change and every new connection triggers a broadcast of the full snapshot.
// Tests can also inject raw frames, refuse upgrades and drop connections.
package jamtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/five82/jamdeck/internal/protocol"
)

// Server is a fake authority listening on a loopback httptest server.
type Server struct {
	srv      *httptest.Server
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	mu        sync.Mutex
	current   protocol.TrackID
	playing   bool
	anchorPos float64
	anchorAt  time.Time
	queue     []protocol.TrackID
	catalog   []protocol.TrackID
	conns     map[string]*conn
	refuse    bool
	attempts  int
	audio     map[string][]byte
	download  func(url string) (string, error)

	commands chan protocol.Command
	connects chan string
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for snapshot timestamps and positions.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithCatalog seeds the available tracks.
func WithCatalog(tracks ...protocol.TrackID) Option {
	return func(s *Server) { s.catalog = append([]protocol.TrackID(nil), tracks...) }
}

// NewServer starts a fake authority and registers its shutdown with t.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		clock:    clockwork.NewRealClock(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[string]*conn),
		audio:    make(map[string][]byte),
		commands: make(chan protocol.Command, 64),
		connects: make(chan string, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.anchorAt = s.clock.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/audio/", s.handleAudio)
	mux.HandleFunc("/download-youtube", s.handleDownload)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// URL returns the base http URL.
func (s *Server) URL() string { return s.srv.URL }

// Addr returns host:port.
func (s *Server) Addr() string { return strings.TrimPrefix(s.srv.URL, "http://") }

// WebSocketURL returns the session endpoint.
func (s *Server) WebSocketURL() string { return "ws://" + s.Addr() + "/ws" }

// Close drops every connection and stops the listener.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// Commands yields every command received, in order.
func (s *Server) Commands() <-chan protocol.Command { return s.commands }

// Connects yields the id of every accepted connection.
func (s *Server) Connects() <-chan string { return s.connects }

// Attempts returns the number of websocket requests seen, accepted or not.
func (s *Server) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Refuse makes the server answer upgrade requests with 503 while on.
func (s *Server) Refuse(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = on
}

// DropConnections closes every open websocket without a close frame.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*conn)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

// SetState replaces the authoritative state without broadcasting.
func (s *Server) SetState(snap protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap.CurrentTrack
	s.playing = snap.IsPlaying
	s.anchorPos = snap.Position
	s.anchorAt = s.clock.Now()
	s.queue = append([]protocol.TrackID(nil), snap.Queue...)
	s.catalog = append([]protocol.TrackID(nil), snap.Catalog...)
}

// Snapshot returns the state as it would be broadcast now.
func (s *Server) Snapshot() protocol.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Server) snapshotLocked() protocol.Snapshot {
	now := s.clock.Now()
	pos := s.anchorPos
	if s.playing {
		pos += now.Sub(s.anchorAt).Seconds()
	}
	return protocol.Snapshot{
		CurrentTrack: s.current,
		IsPlaying:    s.playing,
		Position:     pos,
		Timestamp:    float64(now.UnixNano()) / float64(time.Second),
		Queue:        append([]protocol.TrackID(nil), s.queue...),
		Catalog:      append([]protocol.TrackID(nil), s.catalog...),
	}
}

// Broadcast sends the current snapshot to every connection.
func (s *Server) Broadcast() {
	data, err := protocol.EncodeStateUpdate(s.Snapshot())
	if err != nil {
		return
	}
	s.SendRaw(data)
}

// SendRaw writes data as a text frame to every connection.
func (s *Server) SendRaw(data []byte) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.write(data)
	}
}

// AddAudio serves data at /audio/<name> and adds name to the catalog.
func (s *Server) AddAudio(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio[name] = data
	if !slices.Contains(s.catalog, protocol.TrackID(name)) {
		s.catalog = append(s.catalog, protocol.TrackID(name))
	}
}

// OnDownload sets the ingestion behaviour for POST /download-youtube.
func (s *Server) OnDownload(fn func(url string) (string, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.download = fn
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.attempts++
	refuse := s.refuse
	s.mu.Unlock()
	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	c := &conn{ws: ws}
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()

	select {
	case s.connects <- id:
	default:
	}
	s.Broadcast()

	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			continue
		}
		select {
		case s.commands <- cmd:
		default:
		}
		if s.apply(cmd) {
			s.Broadcast()
		}
	}
}

// apply mutates the state and reports whether anything changed.
func (s *Server) apply(cmd protocol.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	switch c := cmd.(type) {
	case protocol.Play:
		s.playing = true
		s.anchorPos = c.Position
		s.anchorAt = now
	case protocol.Pause:
		if s.playing {
			s.anchorPos += now.Sub(s.anchorAt).Seconds()
		}
		s.playing = false
		s.anchorAt = now
	case protocol.Seek:
		s.anchorPos = c.Position
		s.anchorAt = now
	case protocol.Enqueue:
		if !slices.Contains(s.catalog, c.Track) || slices.Contains(s.queue, c.Track) {
			return false
		}
		s.queue = append(s.queue, c.Track)
	case protocol.Dequeue:
		i := slices.Index(s.queue, c.Track)
		if i < 0 {
			return false
		}
		s.queue = slices.Delete(s.queue, i, i+1)
	case protocol.PlayTrack:
		if !slices.Contains(s.catalog, c.Track) {
			return false
		}
		s.startLocked(c.Track, now)
		if i := slices.Index(s.queue, c.Track); i >= 0 {
			s.queue = slices.Delete(s.queue, i, i+1)
		}
	case protocol.SkipNext:
		if len(s.queue) == 0 {
			return false
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.startLocked(next, now)
	default:
		return false
	}
	return true
}

func (s *Server) startLocked(track protocol.TrackID, now time.Time) {
	s.current = track
	s.playing = true
	s.anchorPos = 0
	s.anchorAt = now
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/audio/")
	s.mu.Lock()
	data, ok := s.audio[name]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Audio file not found"})
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "URL is required"})
		return
	}
	s.mu.Lock()
	fn := s.download
	s.mu.Unlock()
	if fn == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Download failed"})
		return
	}
	name, err := fn(req.URL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	if !slices.Contains(s.catalog, protocol.TrackID(name)) {
		s.catalog = append(s.catalog, protocol.TrackID(name))
	}
	s.mu.Unlock()
	s.Broadcast()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filename": name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
