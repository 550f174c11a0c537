package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/jamdeck/internal/render"
)

// paneHeight returns the outer height of the list boxes.
func (m Model) paneHeight() int {
	return max(m.height-chromeRows, 3)
}

// libraryWidth returns the outer width of the library box. The queue box
// takes the rest of the row.
func (m Model) libraryWidth() int {
	if m.width >= 160 {
		return m.width * 60 / 100
	}
	return m.width * 55 / 100
}

// visibleRows is how many list rows fit inside a box.
func (m Model) visibleRows() int {
	return max(m.paneHeight()-2, 1)
}

// scrollOffset keeps the selected row of p on screen.
func (m Model) scrollOffset(p pane) int {
	return max(m.selected[p]-m.visibleRows()+1, 0)
}

// rowAt maps a screen cell to a pane row.
func (m Model) rowAt(x, y int) (pane, int, bool) {
	first := rowPanes + 1
	if y < first || y >= first+m.visibleRows() {
		return 0, 0, false
	}
	p := paneLibrary
	if x >= m.libraryWidth() {
		p = paneQueue
	}
	idx := y - first + m.scrollOffset(p)
	if idx >= len(m.items(p)) {
		return 0, 0, false
	}
	return p, idx, true
}

// renderLists renders the library and queue side by side.
func (m Model) renderLists() string {
	ops := m.viewer.Ops()
	height := m.paneHeight()
	libWidth := m.libraryWidth()
	queueWidth := m.width - libWidth

	libFocused := m.focused == paneLibrary
	libContent := m.renderSongRows(paneLibrary, ops.Catalog, libWidth-2, libFocused,
		"No songs yet. Press u to download one.")
	libPane := m.renderTitledBox(fmt.Sprintf("Library (%d)", len(ops.Catalog)), libContent, libWidth, height, libFocused)

	queueFocused := m.focused == paneQueue
	queueContent := m.renderSongRows(paneQueue, ops.Queue, queueWidth-2, queueFocused,
		"Queue is empty")
	queuePane := m.renderTitledBox(fmt.Sprintf("Queue (%d)", len(ops.Queue)), queueContent, queueWidth, height, queueFocused)

	return lipgloss.JoinHorizontal(lipgloss.Top, libPane, queuePane)
}

// renderSongRows renders the visible window of items.
func (m Model) renderSongRows(p pane, items []render.SongItem, width int, focused bool, empty string) string {
	bgColor := m.theme.SurfaceAlt
	if focused {
		bgColor = m.theme.FocusBg
	}
	if len(items) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Muted)).
			Background(lipgloss.Color(bgColor)).
			Render(" " + truncate(empty, max(width-1, 1)))
	}

	offset := m.scrollOffset(p)
	end := min(offset+m.visibleRows(), len(items))

	lines := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		selected := focused && i == m.selected[p]
		rowBg := bgColor
		if selected {
			rowBg = m.theme.SelectionBg
		}
		lines = append(lines, lipgloss.NewStyle().
			Background(lipgloss.Color(rowBg)).
			Width(width).
			Render(m.formatSongRow(p, i, items[i], width, rowBg, selected)))
	}
	return strings.Join(lines, "\n")
}

// formatSongRow formats one row: "<marker> <label>   <tag>".
// Selected rows use SelectionText throughout for contrast.
func (m Model) formatSongRow(p pane, idx int, item render.SongItem, width int, bgColor string, selected bool) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()

	marker := " "
	markerStyle := styles.AccentText
	if item.Current {
		marker = "▶"
	}

	var tag string
	tagStyle := styles.FaintText
	switch {
	case p == paneQueue:
		tag = fmt.Sprintf("#%d", idx+1)
	case item.Queued:
		tag = "queued"
		tagStyle = styles.InfoText
	}

	labelStyle := styles.Text
	if item.Current {
		labelStyle = styles.AccentText.Bold(true)
	}
	if selected {
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		markerStyle, labelStyle, tagStyle = sel, sel.Bold(item.Current), sel
	}

	labelWidth := max(width-len(tag)-4, 4)
	label := truncateMiddle(item.Label, labelWidth)
	gap := max(width-3-lipgloss.Width(label)-len(tag), 1)

	return bg.Space() + bg.Render(marker, markerStyle) + bg.Space() +
		bg.Render(label, labelStyle) + bg.Spaces(gap) + bg.Render(tag, tagStyle)
}

// renderTitledBox renders content in a box with the title embedded in the
// top border: ┌─── Title ───┐. Focused boxes use BorderFocus and FocusBg.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.FocusBg
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.SurfaceAlt
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-4, 1))
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColorStr))
	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	lines := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lines = append(lines,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(lines, "\n") + "\n" + bottomBorder
}
