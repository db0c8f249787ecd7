package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/dland/internal/render"
)

// Colors for one-shot output outside the TUI
var (
	colorTextDim = lipgloss.Color("#a8a29e")
	colorSuccess = lipgloss.Color("#34d399")
	colorError   = lipgloss.Color("#f87171")
)

// spinner draws a progress line on a writer (stderr) while a turn runs
type spinner struct {
	w       io.Writer
	message string
	frames  []string
	tick    time.Duration
	colors  []lipgloss.Color
	dim     lipgloss.Color

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// newSpinner creates a spinner in the colors of palette p
func newSpinner(w io.Writer, message string, p render.Palette) *spinner {
	style := bspinner.Dot
	return &spinner{
		w:       w,
		message: message,
		frames:  style.Frames,
		tick:    style.FPS,
		colors:  []lipgloss.Color{p.AccentColor, p.Text, p.TextDim, p.Text},
		dim:     p.TextMute,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		fmt.Fprint(s.w, "\033[?25l")
		for frame := 0; ; frame++ {
			select {
			case <-s.stop:
				fmt.Fprint(s.w, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				fmt.Fprint(s.w, "\r\033[K"+s.frame(frame))
			}
		}
	}()
}

// frame renders animation step n: the glyph, the message and a dot counter
func (s *spinner) frame(n int) string {
	glyph := lipgloss.NewStyle().
		Foreground(s.colors[n%len(s.colors)]).
		Bold(true).
		Render(s.frames[n%len(s.frames)])

	var dots strings.Builder
	lit := (n / 4) % 4
	for i := 0; i < 3; i++ {
		c, d := s.dim, "○"
		if i < lit {
			c, d = s.colors[0], "●"
		}
		dots.WriteString(lipgloss.NewStyle().Foreground(c).Render(d))
	}
	return fmt.Sprintf("%s %s %s", glyph, s.message, dots.String())
}

func (s *spinner) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// stopWithSuccess stops the spinner and prints a check mark line
func (s *spinner) stopWithSuccess(message string) {
	s.halt()
	fmt.Fprintln(s.w, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ "+message))
}

// stopWithError stops the spinner and clears its line
func (s *spinner) stopWithError() {
	s.halt()
}
