package models

import "fmt"

// Theme selects light or dark rendering
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Accent is the highlight color of the interface
type Accent string

const (
	AccentStone   Accent = "stone"
	AccentBlue    Accent = "blue"
	AccentEmerald Accent = "emerald"
	AccentRose    Accent = "rose"
	AccentAmber   Accent = "amber"
	AccentIndigo  Accent = "indigo"
)

// Tone is the voice requested from the model
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneConcise      Tone = "concise"
)

// AllThemes returns the valid themes
func AllThemes() []Theme { return []Theme{ThemeLight, ThemeDark} }

// AllAccents returns the valid accent colors
func AllAccents() []Accent {
	return []Accent{AccentStone, AccentBlue, AccentEmerald, AccentRose, AccentAmber, AccentIndigo}
}

// AllTones returns the valid tones
func AllTones() []Tone {
	return []Tone{ToneProfessional, ToneCasual, ToneEnthusiastic, ToneConcise}
}

// Settings holds the user's appearance and tone preferences.
// They apply to every persona.
type Settings struct {
	Theme       Theme  `json:"theme"`
	AccentColor Accent `json:"accentColor"`
	UserName    string `json:"userName"`
	Tone        Tone   `json:"tone"`
}

// DefaultSettings returns the settings used before the user changes anything
func DefaultSettings() Settings {
	return Settings{
		Theme:       ThemeLight,
		AccentColor: AccentStone,
		UserName:    "",
		Tone:        ToneProfessional,
	}
}

// Validate rejects unknown enum values
func (s Settings) Validate() error {
	if !contains(AllThemes(), s.Theme) {
		return fmt.Errorf("invalid theme %q", s.Theme)
	}
	if !contains(AllAccents(), s.AccentColor) {
		return fmt.Errorf("invalid accent color %q", s.AccentColor)
	}
	if !contains(AllTones(), s.Tone) {
		return fmt.Errorf("invalid tone %q", s.Tone)
	}
	return nil
}

// Normalize fills empty fields with defaults
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	if s.AccentColor == "" {
		s.AccentColor = def.AccentColor
	}
	if s.Tone == "" {
		s.Tone = def.Tone
	}
	return s
}

// Set assigns a field by its settings key ("theme", "accent", "name", "tone")
func (s *Settings) Set(key, value string) error {
	next := *s
	switch key {
	case "theme":
		next.Theme = Theme(value)
	case "accent", "accentColor", "accent_color":
		next.AccentColor = Accent(value)
	case "name", "userName", "user_name":
		next.UserName = value
	case "tone":
		next.Tone = Tone(value)
	default:
		return fmt.Errorf("unknown setting %q (valid: theme, accent, name, tone)", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
