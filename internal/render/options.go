// Package render turns Model replies into styled terminal output.
package render

import (
	"os"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/models"
)

const defaultWidth = 80

// Options selects a glamour renderer. It is comparable and used as the pool
// key, so it only holds plain values.
type Options struct {
	Width int
	// Style is a glamour standard style name or a path to a JSON style
	Style string

	EnableEmoji      bool
	PreserveNewLines bool
	TableWrap        bool
	InlineTableLinks bool
}

// DefaultOptions mirrors the markdown section of a fresh config on a dark
// theme, subject to GLAMOUR_STYLE.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Markdown, models.ThemeDark, 0)
}

// OptionsFromConfig builds render options from the markdown section of the
// config and the user's theme. A width of zero keeps the default width and
// GLAMOUR_STYLE, when set, replaces the theme's style.
func OptionsFromConfig(md config.MarkdownConfig, theme models.Theme, width int) Options {
	if width <= 0 {
		width = defaultWidth
	}
	style := StyleFor(theme)
	if env := os.Getenv("GLAMOUR_STYLE"); env != "" {
		style = env
	}
	return Options{
		Width:            width,
		Style:            style,
		EnableEmoji:      md.EnableEmoji,
		PreserveNewLines: md.PreserveNewLines,
		TableWrap:        md.TableWrap,
		InlineTableLinks: md.InlineTableLinks,
	}
}

// StyleFor maps an interface theme to a glamour standard style
func StyleFor(theme models.Theme) string {
	if theme == models.ThemeLight {
		return "light"
	}
	return "dark"
}
