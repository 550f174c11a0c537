package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/protocol"
)

const (
	defaultReconnectDelay   = 3 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultSendBuffer       = 32
	defaultEventBuffer      = 64
	maxFrameSize            = 1 << 20
)

// Config controls one Session. Zero values take defaults.
type Config struct {
	Endpoint          string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration // zero or <= ReconnectDelay keeps the delay fixed
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	SendBuffer        int
	EventBuffer       int
	Clock             clockwork.Clock
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.ReadTimeout <= c.PingInterval {
		c.ReadTimeout = 2 * c.PingInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Session owns the connection to the authority. Run drives it; Send and
// Status are safe to call from any goroutine.
type Session struct {
	cfg    Config
	dialer *websocket.Dialer
	events chan Event

	mu     sync.RWMutex
	status Status
	out    chan []byte // current connection's write queue, nil unless Open
}

// New returns a Session that has not started connecting.
func New(cfg Config) (*Session, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("session endpoint is empty")
	}
	cfg = cfg.withDefaults()
	return &Session{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		events: make(chan Event, cfg.EventBuffer),
		status: Status{State: Closed},
	}, nil
}

// Events returns the ordered event stream. It is closed when Run returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Status returns a copy of the current connection state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Send queues cmd on the open connection. It never blocks; it reports false
// and drops the command when the connection is not open or its queue is full.
func (s *Session) Send(cmd protocol.Command) bool {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		log.Error().Err(err).Msg("encode command")
		return false
	}

	s.mu.RLock()
	out := s.out
	state := s.status.State
	connID := s.status.ConnectionID
	s.mu.RUnlock()

	if out == nil {
		log.Debug().Str("command", cmd.Type()).Str("state", state.String()).Msg("command dropped: not connected")
		return false
	}
	select {
	case out <- data:
		log.Debug().Str("connection_id", connID).Str("command", cmd.Type()).Msg("command queued")
		return true
	default:
		log.Debug().Str("connection_id", connID).Str("command", cmd.Type()).Msg("command dropped: send queue full")
		return false
	}
}

// Run connects and reconnects until ctx is cancelled. There is no retry
// limit. Events is closed on return.
func (s *Session) Run(ctx context.Context) {
	defer close(s.events)
	defer s.setClosed(nil)

	for {
		s.setConnecting()
		err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt := s.setClosed(err)
		delay := s.cfg.retryDelay(attempt)
		s.mu.Lock()
		s.status.RetryAt = s.cfg.Clock.Now().Add(delay)
		s.mu.Unlock()

		log.Info().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Str("endpoint", s.cfg.Endpoint).
			Msg("session closed, reconnect scheduled")
		if !s.emit(ctx, Disconnected{Err: err, Attempt: attempt, RetryIn: delay}) {
			return
		}

		timer := s.cfg.Clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}

	connID := uuid.NewString()
	out := make(chan []byte, s.cfg.SendBuffer)
	s.mu.Lock()
	s.status.State = Open
	s.status.Attempt = 0
	s.status.ConnectionID = connID
	s.status.LastError = nil
	s.status.ConnectedAt = s.cfg.Clock.Now()
	s.status.RetryAt = time.Time{}
	s.out = out
	s.mu.Unlock()

	log.Info().Str("connection_id", connID).Str("endpoint", s.cfg.Endpoint).Msg("session open")

	connCtx, cancel := context.WithCancel(ctx)
	stopClose := context.AfterFunc(connCtx, func() { _ = conn.Close() })
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(connCtx, conn, out, connID)
	}()

	defer func() {
		s.mu.Lock()
		s.out = nil
		s.mu.Unlock()
		cancel()
		<-pumpDone
		stopClose()
		_ = conn.Close()
	}()

	if !s.emit(ctx, Connected{ConnectionID: connID}) {
		return ctx.Err()
	}
	return s.readLoop(ctx, conn, connID)
}

// writePump is the only writer on conn.
func (s *Session) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte, connID string) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("connection_id", connID).Msg("failed to write command")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("connection_id", connID).Msg("failed to send ping")
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", connID).Msg("unexpected websocket close")
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			log.Warn().Err(err).Str("connection_id", connID).Int("bytes", len(data)).Msg("dropping malformed frame")
			continue
		}

		var ev Event
		switch m := msg.(type) {
		case protocol.StateUpdate:
			ev = SnapshotReceived{Snapshot: m.Snapshot}
		case protocol.Unrecognized:
			log.Debug().Str("connection_id", connID).Str("type", m.Type).Msg("ignoring unrecognized frame")
			ev = FrameIgnored{Type: m.Type}
		default:
			continue
		}
		if !s.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

// emit delivers ev in order, waiting for the consumer. It reports false if
// ctx ended first.
func (s *Session) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) setConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = Connecting
}

// setClosed records a close and returns the new consecutive-failure count.
func (s *Session) setClosed(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = Closed
	s.status.ConnectionID = ""
	s.out = nil
	if err == nil {
		return s.status.Attempt
	}
	s.status.Attempt++
	s.status.LastError = err
	return s.status.Attempt
}
