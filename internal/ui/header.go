package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/jamdeck/internal/render"
	"github.com/five82/jamdeck/internal/session"
)

// renderHeader renders the logo, connection indicator and server address.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	conn := m.viewer.Connectivity()
	connStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ConnectionColor(conn.State)))

	parts := []string{
		bg.Render("jamdeck", styles.Logo),
		bg.Render("● "+strings.ToUpper(conn.State.String()), connStyle),
	}

	switch conn.State {
	case session.Closed:
		retry := humanizeCountdown(conn.RetryAt.Sub(m.clock.Now()))
		parts = append(parts, bg.Render("Retrying in "+retry, styles.WarningText))
		if conn.Attempt > 1 && !compact {
			parts = append(parts, bg.Render(fmt.Sprintf("attempt %d", conn.Attempt), styles.FaintText))
		}
		if conn.LastError != nil && !compact {
			parts = append(parts, bg.Render(truncate(conn.LastError.Error(), 40), styles.MutedText))
		}
	}

	if m.sessionDone {
		parts = append(parts, bg.Render("session ended", styles.WarningText))
	}

	if !compact && m.server != "" {
		parts = append(parts,
			bg.Render("server", styles.FaintText)+bg.Space()+
				bg.Render(truncateMiddle(m.server, 32), styles.MutedText))
	}

	if m.downloading {
		parts = append(parts, bg.Render("Downloading...", styles.InfoText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderNowPlaying renders the transport glyph and current title.
func (m Model) renderNowPlaying() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)
	ops := m.viewer.Ops()

	glyph := "▶"
	if ops.Transport == render.IconPause {
		glyph = "⏸"
	}

	titleStyle := styles.Text.Bold(true)
	if !ops.HasTrack {
		titleStyle = styles.MutedText
	}

	line := bg.Space() +
		bg.Render(glyph, styles.AccentText) + bg.Space() +
		bg.Render(truncate(ops.Title, max(m.width-4, 1)), titleStyle)
	return bg.FillLine(line, m.width)
}

// renderProgress renders " elapsed [bar] total ". Column geometry must match
// progressFraction so mouse clicks land where the bar is drawn.
func (m Model) renderProgress() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)
	p := m.viewer.Ops().Progress

	barWidth := progressBarWidth(m.width)
	filled := 0
	if p.Known {
		filled = min(int(p.Percent*float64(barWidth)/100), barWidth)
	}

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BarFilled))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BarEmpty))

	line := bg.Space() +
		bg.Render(padLeft(p.Elapsed, timeLabelWidth), styles.Text) + bg.Space() +
		bg.Render(strings.Repeat("━", filled), filledStyle) +
		bg.Render(strings.Repeat("─", barWidth-filled), emptyStyle) + bg.Space() +
		bg.Render(padRight(p.Total, timeLabelWidth), styles.MutedText)
	return bg.FillLine(line, m.width)
}

// renderStatusLine renders the transient status message or the URL prompt.
func (m Model) renderStatusLine() string {
	bg := NewBgStyle(m.theme.Background)
	if m.prompting {
		return bg.FillLine(" "+m.urlInput.View(), m.width)
	}
	if m.status.text == "" {
		return bg.FillLine("", m.width)
	}

	styles := m.theme.Styles()
	style := styles.InfoText
	switch m.status.kind {
	case statusSuccess:
		style = styles.SuccessText
	case statusError:
		style = styles.DangerText
	}
	return bg.FillLine(bg.Space()+bg.Render(truncate(m.status.text, max(m.width-2, 1)), style), m.width)
}

// renderCommandBar renders the key hints.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	bindings := m.keys.ShortHelp()
	if m.prompting {
		segments := []string{
			bg.Render("enter", styles.AccentText) + bg.Render(":Download", styles.MutedText),
			bg.Render("esc", styles.AccentText) + bg.Render(":Cancel", styles.MutedText),
		}
		return styles.Footer.Width(m.width).Render(bg.Join(segments, "  "))
	}
	if m.showDiagnostics {
		bindings = []key.Binding{m.keys.Diagnostics, m.keys.Escape, m.keys.Up, m.keys.Down, m.keys.Help, m.keys.Quit}
	}

	segments := make([]string, 0, len(bindings)+1)
	for _, b := range bindings {
		h := b.Help()
		segments = append(segments,
			bg.Render(h.Key, styles.AccentText)+bg.Render(":", styles.FaintText)+bg.Render(h.Desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+bg.Render(":", styles.FaintText)+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Footer.Width(m.width).Render(bg.Join(segments, "  "))
}
