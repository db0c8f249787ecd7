package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/dland/internal/config"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  slashCommand
		ok    bool
	}{
		{"/reset", slashCommand{name: "reset"}, true},
		{"  /persona python ", slashCommand{name: "persona", arg: "python"}, true},
		{"/export ~/my chat.json", slashCommand{name: "export", arg: "~/my chat.json"}, true},
		{"/QUIT", slashCommand{name: "exit"}, true},
		{"exit", slashCommand{name: "exit"}, true},
		{"/", slashCommand{}, false},
		{"hello /reset", slashCommand{}, false},
		{"", slashCommand{}, false},
	}

	for _, tt := range tests {
		got, ok := parseCommand(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, %v; want %+v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGreeting(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2025, 1, 1, h, 0, 0, 0, time.Local) }
	tests := []struct {
		hour int
		name string
		want string
	}{
		{8, "", "Good morning."},
		{12, "Ada", "Good afternoon, Ada."},
		{17, "", "Good afternoon."},
		{18, "", "Good evening."},
		{23, "Bob", "Good evening, Bob."},
	}
	for _, tt := range tests {
		if got := greeting(day(tt.hour), tt.name); got != tt.want {
			t.Errorf("greeting(%d, %q) = %q, want %q", tt.hour, tt.name, got, tt.want)
		}
	}
}

func TestHelpText(t *testing.T) {
	help := helpText()
	for _, c := range []string{"/persona", "/reset", "/export", "/import", "/attach", "/detach", "/copy", "/tone", "/theme", "/accent", "/name", "/exit"} {
		if !strings.Contains(help, c) {
			t.Errorf("help is missing %s", c)
		}
	}
}

func TestPersonaSelector(t *testing.T) {
	s := newPersonaSelector(config.DefaultPersonas(), config.PersonaPython)
	if s.cursor != 1 {
		t.Errorf("cursor should start on the active persona, got %d", s.cursor)
	}

	s.update(tea.KeyMsg{Type: tea.KeyDown})
	s.update(tea.KeyMsg{Type: tea.KeyDown})
	if s.cursor != 0 {
		t.Errorf("cursor should wrap, got %d", s.cursor)
	}
	s.update(tea.KeyMsg{Type: tea.KeyUp})
	if s.cursor != 2 {
		t.Errorf("cursor should wrap upwards, got %d", s.cursor)
	}

	for _, r := range "tutor" {
		s.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if got := s.filtered(); len(got) != 1 || got[0].Name != config.PersonaPython {
		t.Errorf("filter by description failed: %+v", got)
	}
	chosen, done := s.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !done || chosen != config.PersonaPython {
		t.Errorf("enter chose %q (done=%v)", chosen, done)
	}

	s.update(tea.KeyMsg{Type: tea.KeyBackspace})
	if s.filter != "tuto" {
		t.Errorf("backspace should trim the filter, got %q", s.filter)
	}

	s.filter = "zzz"
	if !strings.Contains(s.view(60), "No personas match filter") {
		t.Error("empty filter result should be shown")
	}
	if chosen, done := s.update(tea.KeyMsg{Type: tea.KeyEnter}); done || chosen != "" {
		t.Error("enter with no match should do nothing")
	}
	if _, done := s.update(tea.KeyMsg{Type: tea.KeyEsc}); !done {
		t.Error("esc should close")
	}
}
