package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit        key.Binding
	Help        key.Binding
	CycleTheme  key.Binding
	Tab         key.Binding
	Escape      key.Binding
	Diagnostics key.Binding
	Download    key.Binding

	// Transport
	Toggle      key.Binding
	Next        key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	SeekPercent key.Binding

	// Lists
	PlaySelected key.Binding
	Enqueue      key.Binding
	Remove       key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Input
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "Switch library/queue"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close pane or prompt"),
		),
		Diagnostics: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Diagnostics log"),
		),
		Download: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Download from URL"),
		),

		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Play/pause"),
		),
		Next: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Next in queue"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "Seek back"),
		),
		SeekForward: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "Seek forward"),
		),
		SeekPercent: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "Seek to 0%-90%"),
		),

		PlaySelected: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Play selected"),
		),
		Enqueue: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add to queue"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x", "d"),
			key.WithHelp("x/d", "Remove from queue"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}

// ShortHelp returns key bindings for the command bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.PlaySelected, k.Enqueue, k.Remove, k.Tab, k.Download, k.Help, k.Quit}
}

// FullHelp returns key bindings for the help overlay, one column per group.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Next, k.SeekBack, k.SeekForward, k.SeekPercent},
		{k.PlaySelected, k.Enqueue, k.Remove},
		{k.Tab, k.Up, k.Down, k.Top, k.Bottom},
		{k.Download, k.Diagnostics, k.Escape, k.CycleTheme, k.Help, k.Quit},
	}
}
