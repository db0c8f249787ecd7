// Package tui provides the terminal chat interface for dland.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/render"
)

// theme holds every style the chat screen draws with. It is derived from a
// render.Palette so a settings change restyles the whole screen at once.
type theme struct {
	palette render.Palette

	header, logo, title, subtitle, hint lipgloss.Style

	messages                     lipgloss.Style
	userLabel, userBubble        lipgloss.Style
	replyLabel, replyBubble      lipgloss.Style
	failure, attachment, elapsed lipgloss.Style

	inputPanel, inputLabel, loading  lipgloss.Style
	statusBar, statusKey, statusDesc lipgloss.Style
	notice                           lipgloss.Style

	welcomeTitle, welcomeSubtitle lipgloss.Style
	suggestionKey, suggestion     lipgloss.Style

	selectorBox, selectorTitle, selectorItem lipgloss.Style
	selectorSelected, selectorCursor         lipgloss.Style
	selectorActive                           lipgloss.Style
}

// styles is the active theme.
var styles theme

func init() {
	def := models.DefaultSettings()
	ApplyPalette(render.PaletteFor(def.Theme, def.AccentColor))
}

// ApplyPalette rebuilds the active theme from p.
func ApplyPalette(p render.Palette) {
	styles = newTheme(p)
}

func newTheme(p render.Palette) theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	boxed := func(border lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(border)
	}

	return theme{
		palette: p,

		header:   boxed(p.Border).Padding(0, 2).MarginBottom(1),
		logo:     lipgloss.NewStyle().Background(p.AccentColor).Foreground(p.OnAccent).Bold(true).Padding(0, 1),
		title:    fg(p.Text).Bold(true),
		subtitle: fg(p.TextDim),
		hint:     fg(p.TextMute).Italic(true),

		messages:    boxed(p.Border).Padding(1),
		userLabel:   fg(p.AccentColor).Bold(true).MarginLeft(4),
		userBubble:  boxed(p.AccentColor).Foreground(p.Text).Padding(0, 1).MarginLeft(4),
		replyLabel:  fg(p.Text).Bold(true),
		replyBubble: boxed(p.Border).Foreground(p.Text).Padding(0, 1).MarginRight(4),
		failure: fg(p.Error).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(p.Error).
			PaddingLeft(1).
			MarginLeft(2),
		attachment: fg(p.TextDim).Italic(true),
		elapsed:    fg(p.TextMute),

		inputPanel: boxed(p.Border).Padding(0, 1).MarginTop(1),
		inputLabel: fg(p.AccentColor).Bold(true).MarginRight(1),
		loading:    fg(p.AccentColor).Bold(true),
		statusBar:  fg(p.TextMute).MarginTop(1),
		statusKey:  fg(p.TextDim).Bold(true),
		statusDesc: fg(p.TextMute),
		notice:     fg(p.Success),

		welcomeTitle:    fg(p.Text).Bold(true).Align(lipgloss.Center),
		welcomeSubtitle: fg(p.TextDim).Align(lipgloss.Center),
		suggestionKey:   fg(p.AccentColor).Background(p.Surface).Bold(true).Padding(0, 1),
		suggestion:      fg(p.Text),

		selectorBox:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.AccentColor).Padding(1, 2),
		selectorTitle:    fg(p.Text).Bold(true),
		selectorItem:     fg(p.Text),
		selectorSelected: fg(p.AccentColor).Bold(true),
		selectorCursor:   fg(p.AccentColor),
		selectorActive:   fg(p.Warning),
	}
}

// FormatError renders err in the error color followed by its details.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	lines := []string{lipgloss.NewStyle().Foreground(styles.palette.Error).Render("✗ " + err.Error())}
	dim := lipgloss.NewStyle().Foreground(styles.palette.TextDim)
	for _, d := range errors.Details(err) {
		lines = append(lines, dim.Render("  "+strings.ReplaceAll(d, "\n", "\n  ")))
	}
	return strings.Join(lines, "\n")
}

