package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/five82/jamdeck/internal/dispatch"
	"github.com/five82/jamdeck/internal/jamapi"
	"github.com/five82/jamdeck/internal/logtail"
	"github.com/five82/jamdeck/internal/prefs"
	"github.com/five82/jamdeck/internal/protocol"
	"github.com/five82/jamdeck/internal/render"
	"github.com/five82/jamdeck/internal/session"
	"github.com/five82/jamdeck/internal/viewer"
)

// Downloader ingests a media URL into the shared catalog.
type Downloader interface {
	Download(ctx context.Context, videoURL string) (jamapi.DownloadResult, error)
}

// pane identifies one of the two list panes.
type pane int

const (
	paneLibrary pane = iota
	paneQueue
)

// statusKind colors the status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusError
)

type statusLine struct {
	text string
	kind statusKind
	seq  int
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Viewer     *viewer.Viewer
	Events     <-chan session.Event
	Downloader Downloader
	Server     string
	LogPath    string
	PrefsPath  string
	Prefs      prefs.Prefs
	TickEvery  time.Duration
	Clock      clockwork.Clock
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	viewer     *viewer.Viewer
	events     <-chan session.Event
	downloader Downloader
	server     string
	logPath    string
	prefsPath  string
	prefs      prefs.Prefs
	tickEvery  time.Duration
	clock      clockwork.Clock
	keys       keyMap

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	focused  pane
	selected [2]int
	showHelp bool

	// Status line
	status    statusLine
	statusSeq int

	// Download prompt
	prompting   bool
	urlInput    textinput.Model
	downloading bool

	// Diagnostics pane
	showDiagnostics bool
	diagViewport    viewport.Model
	diagEntries     []logtail.Entry
	diagErr         error
	diagRefreshed   time.Time

	sessionDone bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tickEvery := opts.TickEvery
	if tickEvery <= 0 {
		tickEvery = DefaultTickInterval
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	p := opts.Prefs
	if p.Theme == "" || p.SeekStep <= 0 {
		p = prefs.Default()
	}

	input := textinput.New()
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.Prompt = "URL: "
	input.CharLimit = 512

	return Model{
		ctx:        ctx,
		viewer:     opts.Viewer,
		events:     opts.Events,
		downloader: opts.Downloader,
		server:     opts.Server,
		logPath:    opts.LogPath,
		prefsPath:  opts.PrefsPath,
		prefs:      p,
		tickEvery:  tickEvery,
		clock:      clock,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(p.Theme),
		urlInput:   input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		tickCmd(m.tickEvery),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.initDiagnosticsViewport()
		}
		m.ready = true
		m.updateDiagnosticsViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case sessionEventMsg:
		m.handleSessionEvent(msg.event)
		return m, waitForEvent(m.events)

	case sessionClosedMsg:
		m.sessionDone = true
		return m, nil

	case tickMsg:
		return m.handleTick()

	case diagnosticsMsg:
		m.diagEntries = msg.entries
		m.diagErr = msg.err
		m.updateDiagnosticsViewport()
		return m, nil

	case downloadResultMsg:
		m.downloading = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("url", msg.url).Msg("download failed")
			cmd := m.setStatus(downloadFailure(msg.err), statusError)
			return m, cmd
		}
		log.Info().Str("url", msg.url).Str("filename", msg.filename).Msg("download finished")
		cmd := m.setStatus("Downloaded: "+msg.filename, statusSuccess)
		return m, cmd

	case statusExpiredMsg:
		if msg.seq == m.status.seq {
			m.status = statusLine{}
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleSessionEvent feeds one session event to the viewer and keeps each
// pane's selection on the same track when the lists change.
func (m *Model) handleSessionEvent(ev session.Event) {
	library := m.selectedTrack(paneLibrary)
	queued := m.selectedTrack(paneQueue)
	m.viewer.HandleSession(ev)
	m.reselect(paneLibrary, library)
	m.reselect(paneQueue, queued)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompting {
		return m.handlePromptKey(msg)
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	d := m.viewer.Dispatch()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if m.prefsPath != "" {
			if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
				log.Warn().Err(err).Str("path", m.prefsPath).Msg("save prefs")
			}
		}
		m.updateDiagnosticsViewport()
		return m, nil

	case key.Matches(msg, m.keys.Diagnostics):
		m.showDiagnostics = !m.showDiagnostics
		if m.showDiagnostics {
			m.diagRefreshed = m.clock.Now()
			return m, readDiagnosticsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.showDiagnostics = false
		return m, nil

	case key.Matches(msg, m.keys.Download):
		return m.openPrompt()

	case key.Matches(msg, m.keys.Toggle):
		return m.runIntent(d.TogglePlayback())

	case key.Matches(msg, m.keys.Next):
		return m.runIntent(d.SkipNext())

	case key.Matches(msg, m.keys.SeekBack):
		return m.runIntent(d.SeekBy(-m.prefs.SeekStep))

	case key.Matches(msg, m.keys.SeekForward):
		return m.runIntent(d.SeekBy(m.prefs.SeekStep))

	case key.Matches(msg, m.keys.SeekPercent):
		digit := float64(msg.String()[0] - '0')
		return m.runIntent(d.SeekFraction(digit / 10))
	}

	if m.showDiagnostics {
		var cmd tea.Cmd
		m.diagViewport, cmd = m.diagViewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Tab):
		if m.focused == paneLibrary {
			m.focused = paneQueue
		} else {
			m.focused = paneLibrary
		}

	case key.Matches(msg, m.keys.PlaySelected):
		return m.runIntent(d.PlayTrack(m.selectedTrack(m.focused)))

	case key.Matches(msg, m.keys.Enqueue):
		if m.focused != paneLibrary {
			cmd := m.setStatus("Select a library song to add", statusInfo)
			return m, cmd
		}
		return m.runIntent(d.Enqueue(m.selectedTrack(paneLibrary)))

	case key.Matches(msg, m.keys.Remove):
		if m.focused != paneQueue {
			cmd := m.setStatus("Select a queue entry to remove", statusInfo)
			return m, cmd
		}
		return m.runIntent(d.Dequeue(m.selectedTrack(paneQueue)))

	default:
		m.moveSelection(msg)
	}

	return m, nil
}

// moveSelection applies vim-style navigation to the focused pane.
func (m *Model) moveSelection(msg tea.KeyMsg) {
	count := len(m.items(m.focused))
	if count == 0 {
		return
	}
	sel := &m.selected[m.focused]
	switch {
	case key.Matches(msg, m.keys.Down):
		if *sel < count-1 {
			*sel++
		}
	case key.Matches(msg, m.keys.Up):
		if *sel > 0 {
			*sel--
		}
	case key.Matches(msg, m.keys.Top):
		*sel = 0
	case key.Matches(msg, m.keys.Bottom):
		*sel = count - 1
	}
}

// handleMouse seeks on a progress bar click and selects list rows.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.prompting || m.showHelp || !m.ready {
		return m, nil
	}
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	if msg.Y == rowProgress {
		f, ok := progressFraction(msg.X, m.width)
		if !ok {
			return m, nil
		}
		return m.runIntent(m.viewer.Dispatch().SeekFraction(f))
	}

	if m.showDiagnostics {
		return m, nil
	}
	p, idx, ok := m.rowAt(msg.X, msg.Y)
	if ok {
		m.focused = p
		m.selected[p] = idx
	}
	return m, nil
}

// progressFraction maps a click column to a fraction of the progress bar.
func progressFraction(x, width int) (float64, bool) {
	barWidth := progressBarWidth(width)
	offset := x - progressStart
	if offset < 0 || offset >= barWidth {
		return 0, false
	}
	return float64(offset) / float64(barWidth), true
}

// runIntent turns a dispatcher result into user feedback. Accepted intents
// change nothing locally; the next snapshot carries the effect.
func (m Model) runIntent(sent bool, err error) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(err, dispatch.ErrDurationUnknown):
		cmd := m.setStatus("Cannot seek yet: duration unknown", statusError)
		return m, cmd
	case errors.Is(err, dispatch.ErrNoTrack):
		cmd := m.setStatus("No song selected", statusError)
		return m, cmd
	case err != nil:
		cmd := m.setStatus(err.Error(), statusError)
		return m, cmd
	case !sent:
		cmd := m.setStatus("Not connected: command dropped", statusError)
		return m, cmd
	}
	return m, nil
}

// setStatus shows text on the status line and schedules it to clear.
func (m *Model) setStatus(text string, kind statusKind) tea.Cmd {
	m.statusSeq++
	seq := m.statusSeq
	m.status = statusLine{text: text, kind: kind, seq: seq}
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// handleTick advances the media clock and refreshes the diagnostics pane.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.viewer.Tick()

	cmds := []tea.Cmd{tickCmd(m.tickEvery)}
	if m.showDiagnostics && m.clock.Since(m.diagRefreshed) >= time.Second {
		m.diagRefreshed = m.clock.Now()
		cmds = append(cmds, readDiagnosticsCmd(m.logPath))
	}
	return m, tea.Batch(cmds...)
}

// items returns the rows of a pane from the current projection.
func (m Model) items(p pane) []render.SongItem {
	ops := m.viewer.Ops()
	if p == paneQueue {
		return ops.Queue
	}
	return ops.Catalog
}

// selectedTrack returns the track under the cursor in p, or "" if empty.
func (m Model) selectedTrack(p pane) protocol.TrackID {
	items := m.items(p)
	idx := m.selected[p]
	if idx < 0 || idx >= len(items) {
		return ""
	}
	return items[idx].Track
}

// reselect keeps the cursor on track when it is still listed, otherwise
// clamps it into range.
func (m *Model) reselect(p pane, track protocol.TrackID) {
	items := m.items(p)
	if len(items) == 0 {
		m.selected[p] = 0
		return
	}
	if track != "" {
		for i, item := range items {
			if item.Track == track {
				m.selected[p] = i
				return
			}
		}
	}
	m.selected[p] = min(max(m.selected[p], 0), len(items)-1)
}

// renderMain renders the full screen.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())

	return b.String()
}

// renderContent renders the pane area.
func (m Model) renderContent() string {
	if m.showDiagnostics {
		return m.renderDiagnostics()
	}
	return m.renderLists()
}

// Messages

type tickMsg time.Time

type sessionEventMsg struct {
	event session.Event
}

type sessionClosedMsg struct{}

type statusExpiredMsg struct {
	seq int
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent delivers the next session event. Only one wait is ever
// outstanding, so events reach the viewer in the order they were sent.
func waitForEvent(events <-chan session.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg{event: ev}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Context = ctx

	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
