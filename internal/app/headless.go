package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/session"
	"github.com/five82/jamdeck/internal/viewer"
)

const defaultTickInterval = 250 * time.Millisecond

// runHeadless drives the viewer without a terminal UI. Session events and
// media ticks are handled on this goroutine only. It returns when ctx is
// cancelled or the session closes its event stream.
func runHeadless(ctx context.Context, v *viewer.Viewer, events <-chan session.Event, interval time.Duration, clock clockwork.Clock) error {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logSessionEvent(ev)
			v.HandleSession(ev)
		case <-ticker.Chan():
			v.Tick()
		}
	}
}

func logSessionEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.Connected:
		log.Info().Str("connection_id", e.ConnectionID).Msg("connected")
	case session.Disconnected:
		log.Warn().
			Err(e.Err).
			Int("attempt", e.Attempt).
			Dur("retry_in", e.RetryIn).
			Msg("disconnected")
	case session.FrameIgnored:
		log.Debug().Str("type", e.Type).Msg("frame ignored")
	}
}

// logRender reports each projection. Progress refreshes arrive several times
// a second, so they log at trace.
func logRender(r viewer.Render) {
	ops := r.Ops
	if r.Kind == viewer.RenderProgress {
		log.Trace().
			Str("elapsed", ops.Progress.Elapsed).
			Str("total", ops.Progress.Total).
			Msg("progress")
		return
	}
	log.Info().
		Str("title", ops.Title).
		Str("transport", string(ops.Transport)).
		Str("elapsed", ops.Progress.Elapsed).
		Str("total", ops.Progress.Total).
		Int("catalog", len(ops.Catalog)).
		Int("queue", len(ops.Queue)).
		Msg("now playing")
}
