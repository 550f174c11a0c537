package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/jamdeck/internal/logtail"
)

// diagnosticsMsg carries a fresh read of the log file.
type diagnosticsMsg struct {
	entries []logtail.Entry
	err     error
}

// readDiagnosticsCmd tails the log file off the UI goroutine.
func readDiagnosticsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return diagnosticsMsg{}
		}
		lines, err := logtail.Read(path, diagnosticsLines)
		if err != nil {
			return diagnosticsMsg{err: err}
		}
		return diagnosticsMsg{entries: logtail.ParseLines(lines)}
	}
}

// initDiagnosticsViewport initializes the diagnostics viewport.
func (m *Model) initDiagnosticsViewport() {
	m.diagViewport = viewport.New(max(m.width-2, 1), m.diagnosticsHeight())
	m.diagViewport.Style = lipgloss.NewStyle()
}

// diagnosticsHeight is the viewport height: pane box minus borders and the
// stats line.
func (m Model) diagnosticsHeight() int {
	return max(m.paneHeight()-3, 1)
}

// updateDiagnosticsViewport resizes the viewport and re-renders its content.
// The view stays pinned to the newest entry unless the user scrolled up.
func (m *Model) updateDiagnosticsViewport() {
	if m.diagViewport.Width == 0 {
		m.initDiagnosticsViewport()
	}
	follow := m.diagViewport.AtBottom()

	m.diagViewport.Width = max(m.width-2, 1)
	m.diagViewport.Height = m.diagnosticsHeight()
	m.diagViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.diagViewport.SetContent(m.renderDiagnosticsContent())

	if follow {
		m.diagViewport.GotoBottom()
	}
}

// renderDiagnostics renders the diagnostics pane in place of the lists.
func (m Model) renderDiagnostics() string {
	content := m.renderDiagnosticsStats() + "\n" + m.diagViewport.View()
	return m.renderTitledBox("Diagnostics", content, m.width, m.paneHeight(), true)
}

// renderDiagnosticsStats summarizes sync counters and the last media error.
func (m Model) renderDiagnosticsStats() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)

	applied, stale, ignored := m.viewer.Stats()
	conn := m.viewer.Connectivity()

	parts := []string{
		bg.Render("applied", styles.FaintText) + bg.Space() + bg.Render(fmt.Sprint(applied), styles.Text),
		bg.Render("stale", styles.FaintText) + bg.Space() + bg.Render(fmt.Sprint(stale), styles.Text),
		bg.Render("ignored", styles.FaintText) + bg.Space() + bg.Render(fmt.Sprint(ignored), styles.Text),
	}
	if conn.ConnectionID != "" {
		parts = append(parts, bg.Render("conn", styles.FaintText)+bg.Space()+bg.Render(conn.ConnectionID, styles.MutedText))
	}
	if err := m.viewer.LastMediaError(); err != nil {
		parts = append(parts, bg.Render("media: "+truncate(err.Error(), 40), styles.DangerText))
	}
	return bg.Space() + bg.Join(parts, "  ")
}

// renderDiagnosticsContent renders log entries, oldest first.
func (m Model) renderDiagnosticsContent() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)

	if m.diagErr != nil {
		return bg.Render("Log unavailable: "+m.diagErr.Error(), styles.DangerText)
	}
	if m.logPath == "" {
		return bg.Render("Logging to file is disabled", styles.MutedText)
	}
	if len(m.diagEntries) == 0 {
		return bg.Render("No log entries yet", styles.MutedText)
	}

	var b strings.Builder
	for i, e := range m.diagEntries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(e, styles, bg))
	}
	return b.String()
}

// renderEntry colorizes one entry: time, level, component, message, then
// indented details.
func (m Model) renderEntry(e logtail.Entry, styles Styles, bg BgStyle) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(bg.Render(e.Time.Local().Format(time.TimeOnly), styles.FaintText))
		b.WriteString(bg.Space())
	}
	if e.Level != "" {
		b.WriteString(bg.Render(padRight(e.Level, 5), levelStyle(e.Level, styles).Bold(true)))
		b.WriteString(bg.Space())
	}
	if e.Component != "" {
		b.WriteString(bg.Render("["+e.Component+"]", styles.AccentText))
		b.WriteString(bg.Space())
	}
	b.WriteString(bg.Render(e.Message, styles.Text))

	for _, d := range e.Details {
		b.WriteString("\n")
		b.WriteString(bg.Spaces(4))
		b.WriteString(bg.Render(d.Label+":", styles.MutedText))
		b.WriteString(bg.Space())
		b.WriteString(bg.Render(d.Value, styles.Text))
	}
	return b.String()
}

// levelStyle returns the style for a log level.
func levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "INFO":
		return styles.SuccessText
	case "WARN":
		return styles.WarningText
	case "ERROR", "FATAL", "PANIC":
		return styles.DangerText
	case "DEBUG", "TRACE":
		return styles.InfoText
	default:
		return styles.Text
	}
}
