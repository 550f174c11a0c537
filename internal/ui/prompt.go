package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/jamdeck/internal/jamapi"
)

// downloadResultMsg reports the outcome of a download request.
type downloadResultMsg struct {
	url      string
	filename string
	err      error
}

// openPrompt shows the URL input on the status line.
func (m Model) openPrompt() (tea.Model, tea.Cmd) {
	if m.downloader == nil {
		cmd := m.setStatus("Downloads are not available", statusError)
		return m, cmd
	}
	if m.downloading {
		cmd := m.setStatus("Downloading...", statusInfo)
		return m, cmd
	}
	m.prompting = true
	m.urlInput.SetValue("")
	cmd := m.urlInput.Focus()
	return m, cmd
}

// handlePromptKey routes keys to the URL input while it is open.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.prompting = false
		m.urlInput.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			cmd := m.setStatus("Please enter a YouTube URL", statusError)
			return m, cmd
		}
		m.prompting = false
		m.urlInput.Blur()
		m.downloading = true
		status := m.setStatus("Downloading...", statusInfo)
		return m, tea.Batch(status, downloadCmd(m.ctx, m.downloader, url))
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

// downloadCmd runs the request off the UI goroutine. The HTTP client applies
// its own download timeout.
func downloadCmd(ctx context.Context, d Downloader, url string) tea.Cmd {
	return func() tea.Msg {
		res, err := d.Download(ctx, url)
		return downloadResultMsg{url: url, filename: res.Filename, err: err}
	}
}

// downloadFailure builds the status text for a failed download.
func downloadFailure(err error) string {
	var apiErr *jamapi.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return "Download failed: " + apiErr.Detail
	case errors.As(err, &apiErr), errors.Is(err, jamapi.ErrDownloadFailed):
		return "Download failed"
	default:
		return "Download failed: " + err.Error()
	}
}
