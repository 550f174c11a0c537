package ui

import (
	"testing"

	"github.com/five82/jamdeck/internal/session"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	for _, name := range names {
		if GetTheme(name).Name != name {
			t.Fatalf("GetTheme(%q).Name = %q", name, GetTheme(name).Name)
		}
	}
}

func TestNextTheme(t *testing.T) {
	tests := map[string]string{
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Slate":    "Nightfox",
		"Unknown":  "Nightfox",
	}
	for in, want := range tests {
		if got := NextTheme(in); got != want {
			t.Fatalf("NextTheme(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox (fallback)", got)
	}
}

func TestConnectionColor(t *testing.T) {
	th := GetTheme("Slate")
	if th.ConnectionColor(session.Open) != th.Success {
		t.Fatalf("open color = %q, want success", th.ConnectionColor(session.Open))
	}
	if th.ConnectionColor(session.Connecting) != th.Warning {
		t.Fatalf("connecting color = %q, want warning", th.ConnectionColor(session.Connecting))
	}
	if th.ConnectionColor(session.Closed) != th.Danger {
		t.Fatalf("closed color = %q, want danger", th.ConnectionColor(session.Closed))
	}
}
