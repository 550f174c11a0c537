package ui

import "time"

// Fixed rows of the main screen, top to bottom.
const (
	rowHeader     = 0
	rowNowPlaying = 1
	rowProgress   = 2
	rowPanes      = 3

	// Status line and command bar sit below the panes.
	footerRows = 2
	chromeRows = rowPanes + footerRows
)

// Progress row geometry: " <elapsed> <bar> <total> ".
const (
	timeLabelWidth = 6
	progressStart  = 1 + timeLabelWidth + 1
	progressTail   = 1 + timeLabelWidth + 1
	minBarWidth    = 10
)

// Terminal width threshold below which the header drops secondary fields.
const LayoutCompactWidth = 80

// Diagnostics pane limits.
const (
	diagnosticsLines = 200
)

// Timing constants.
const (
	// statusTTL is how long a status message stays up.
	statusTTL = 5 * time.Second

	// DefaultTickInterval drives media clock polling and progress refresh.
	DefaultTickInterval = 250 * time.Millisecond
)

// progressBarWidth returns the bar width for a terminal width.
func progressBarWidth(width int) int {
	return max(width-progressStart-progressTail, minBarWidth)
}
