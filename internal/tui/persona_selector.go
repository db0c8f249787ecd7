package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/dland/internal/config"
)

// personaSelector is the overlay opened by /persona without a name
type personaSelector struct {
	personas []config.Persona
	current  string
	cursor   int
	filter   string
}

func newPersonaSelector(personas []config.Persona, current string) personaSelector {
	s := personaSelector{personas: personas, current: current}
	for i, p := range personas {
		if p.Name == current {
			s.cursor = i
		}
	}
	return s
}

// filtered returns the personas matching the typed filter
func (s personaSelector) filtered() []config.Persona {
	if s.filter == "" {
		return s.personas
	}

	filter := strings.ToLower(s.filter)
	var out []config.Persona
	for _, p := range s.personas {
		if strings.Contains(strings.ToLower(p.Name), filter) ||
			strings.Contains(strings.ToLower(p.Description), filter) {
			out = append(out, p)
		}
	}
	return out
}

// update handles a key. It returns the chosen persona name when the user
// confirms, and done when the selector should close.
func (s *personaSelector) update(msg tea.KeyMsg) (chosen string, done bool) {
	filtered := s.filtered()

	switch msg.String() {
	case "esc":
		return "", true

	case "up", "ctrl+p":
		if len(filtered) > 0 {
			s.cursor--
			if s.cursor < 0 {
				s.cursor = len(filtered) - 1
			}
		}

	case "down", "ctrl+n", "tab":
		if len(filtered) > 0 {
			s.cursor++
			if s.cursor >= len(filtered) {
				s.cursor = 0
			}
		}

	case "enter":
		if s.cursor < len(filtered) {
			return filtered[s.cursor].Name, true
		}

	case "backspace":
		if len(s.filter) > 0 {
			s.filter = s.filter[:len(s.filter)-1]
			s.cursor = 0
		}

	default:
		if len(msg.Runes) == 1 {
			r := msg.Runes[0]
			if r >= ' ' && r <= '~' {
				s.filter += string(r)
				s.cursor = 0
			}
		}
	}
	return "", false
}

func (s personaSelector) view(width int) string {
	if width < 40 {
		width = 40
	}

	var content strings.Builder
	content.WriteString(styles.selectorTitle.Render("Select a persona"))
	content.WriteString(styles.hint.Render(fmt.Sprintf("  (current: %s)", s.current)))
	content.WriteString("\n\n")

	if s.filter != "" {
		content.WriteString(styles.inputLabel.Render("filter:") + s.filter + "_")
		content.WriteString("\n\n")
	}

	filtered := s.filtered()
	if len(filtered) == 0 {
		content.WriteString(styles.hint.Render("  No personas match filter"))
		content.WriteString("\n")
	}
	for i, p := range filtered {
		cursor := "  "
		nameStyle := styles.selectorItem
		if i == s.cursor {
			cursor = styles.selectorCursor.Render("▸ ")
			nameStyle = styles.selectorSelected
		}

		line := cursor + nameStyle.Render(p.Name)
		if p.Name == s.current {
			line += styles.selectorActive.Render(" (active)")
		}
		if p.Description != "" {
			maxDesc := width - len(p.Name) - 20
			desc := p.Description
			if maxDesc > 10 && len(desc) > maxDesc {
				desc = desc[:maxDesc-3] + "..."
			}
			line += styles.hint.Render(" - " + desc)
		}
		content.WriteString(line)
		content.WriteString("\n")
	}

	content.WriteString("\n")
	shortcuts := []string{
		styles.statusKey.Render("↑↓") + styles.statusDesc.Render(" Navigate"),
		styles.statusKey.Render("Enter") + styles.statusDesc.Render(" Select"),
		styles.statusKey.Render("Esc") + styles.statusDesc.Render(" Cancel"),
	}
	content.WriteString(strings.Join(shortcuts, "  │  "))

	return styles.selectorBox.Width(width).Render(content.String())
}
