// Package render projects synchronized state into view operations.
//
// Project is pure: the same state and clock reading always yield the same
// ViewOps, and nothing flows back into state.
package render

import (
	"fmt"
	"math"
	"slices"

	"github.com/five82/jamdeck/internal/protocol"
	"github.com/five82/jamdeck/internal/reconcile"
)

// NoTrackTitle is shown when nothing is selected.
const NoTrackTitle = "No song selected"

// Icon names the transport button.
type Icon string

const (
	IconPlay  Icon = "play"
	IconPause Icon = "pause"
)

// Action is something a list entry can do.
type Action string

const (
	ActionPlay    Action = "play"
	ActionEnqueue Action = "enqueue"
	ActionRemove  Action = "remove"
)

// SongItem is one row of the catalog or queue.
type SongItem struct {
	Track   protocol.TrackID
	Label   string
	Current bool
	Queued  bool
	Actions []Action
}

// Progress is the progress bar and time readout.
type Progress struct {
	Elapsed  string
	Total    string
	Percent  float64 // 0..100
	Known    bool
	Position float64
	Duration float64
}

// ViewOps is everything a surface needs to draw.
type ViewOps struct {
	Title     string
	HasTrack  bool
	Transport Icon
	Catalog   []SongItem
	Queue     []SongItem
	Progress  Progress
}

// ClockView is the read side of the media clock.
type ClockView interface {
	Position() float64
	Duration() (float64, bool)
}

// Project computes the full view.
func Project(st reconcile.LocalState, clock ClockView) ViewOps {
	ops := ViewOps{
		Title:     NoTrackTitle,
		HasTrack:  st.CurrentTrack != "",
		Transport: IconPlay,
		Catalog:   make([]SongItem, 0, len(st.Catalog)),
		Queue:     make([]SongItem, 0, len(st.Queue)),
		Progress:  ProjectProgress(clock),
	}
	if ops.HasTrack {
		ops.Title = string(st.CurrentTrack)
	}
	if st.IsPlaying {
		ops.Transport = IconPause
	}
	for _, track := range st.Catalog {
		ops.Catalog = append(ops.Catalog, SongItem{
			Track:   track,
			Label:   string(track),
			Current: track == st.CurrentTrack,
			Queued:  slices.Contains(st.Queue, track),
			Actions: []Action{ActionPlay, ActionEnqueue},
		})
	}
	for _, track := range st.Queue {
		ops.Queue = append(ops.Queue, SongItem{
			Track:   track,
			Label:   string(track),
			Queued:  true,
			Actions: []Action{ActionRemove},
		})
	}
	return ops
}

// ProjectProgress computes only the progress readout.
func ProjectProgress(clock ClockView) Progress {
	pos := clock.Position()
	duration, ok := clock.Duration()
	p := Progress{Elapsed: FormatTime(pos), Total: "--:--", Position: pos}
	if !ok || duration <= 0 {
		return p
	}
	p.Known = true
	p.Duration = duration
	p.Total = FormatTime(duration)
	p.Percent = math.Min(100, math.Max(0, pos*100/duration))
	return p
}

// FormatTime renders seconds as m:ss. Invalid or negative values render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
