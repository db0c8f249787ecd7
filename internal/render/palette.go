package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/dland/internal/models"
)

// Palette is the set of colors the TUI draws with
type Palette struct {
	Theme  models.Theme
	Accent models.Accent

	// AccentColor highlights the logo, user messages and the active persona
	AccentColor lipgloss.Color
	// OnAccent is the text color used on top of AccentColor
	OnAccent lipgloss.Color

	Surface lipgloss.Color
	Border  lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color

	Warning lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color
}

type accentShades struct {
	light, dark lipgloss.Color
}

var accentColors = map[models.Accent]accentShades{
	models.AccentStone:   {light: "#292524", dark: "#e7e5e4"},
	models.AccentBlue:    {light: "#2563eb", dark: "#60a5fa"},
	models.AccentEmerald: {light: "#059669", dark: "#34d399"},
	models.AccentRose:    {light: "#e11d48", dark: "#fb7185"},
	models.AccentAmber:   {light: "#d97706", dark: "#fbbf24"},
	models.AccentIndigo:  {light: "#4f46e5", dark: "#818cf8"},
}

var (
	darkBase = Palette{
		Theme:    models.ThemeDark,
		Surface:  "#292524",
		Border:   "#44403c",
		Text:     "#e7e5e4",
		TextDim:  "#a8a29e",
		TextMute: "#57534e",
		Warning:  "#fbbf24",
		Error:    "#f87171",
		Success:  "#34d399",
	}
	lightBase = Palette{
		Theme:    models.ThemeLight,
		Surface:  "#f5f5f4",
		Border:   "#d6d3d1",
		Text:     "#1c1917",
		TextDim:  "#57534e",
		TextMute: "#a8a29e",
		Warning:  "#b45309",
		Error:    "#dc2626",
		Success:  "#047857",
	}
)

// PaletteFor returns the colors for a theme and accent. Unknown values fall
// back to the defaults.
func PaletteFor(theme models.Theme, accent models.Accent) Palette {
	p := darkBase
	if theme == models.ThemeLight {
		p = lightBase
	}

	shades, ok := accentColors[accent]
	if !ok {
		accent = models.DefaultSettings().AccentColor
		shades = accentColors[accent]
	}
	p.Accent = accent

	if p.Theme == models.ThemeDark {
		p.AccentColor = shades.dark
		p.OnAccent = "#1c1917"
	} else {
		p.AccentColor = shades.light
		p.OnAccent = "#fafaf9"
	}
	return p
}
