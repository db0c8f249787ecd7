package commands

import (
	"context"
	"time"

	"github.com/atotto/clipboard"

	"github.com/diogo/dland/internal/provider"
	"github.com/diogo/dland/internal/store"
	"github.com/diogo/dland/internal/tui"
)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// Doer replaces the HTTP client of both providers and the locator
	Doer provider.Doer

	// Store replaces the configured persistence backend
	Store store.Store

	// RunTUI starts the interactive chat screen
	RunTUI func(ctx context.Context, sess tui.Session, opts tui.Options) error

	// Clipboard copies text to the system clipboard
	Clipboard func(text string) error

	// IsTerminal reports whether a stream is attached to a terminal
	IsTerminal func(f any) bool

	// TerminalWidth returns the width of stdout, or 0 when unknown
	TerminalWidth func() int

	Now func() time.Time
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		RunTUI:        tui.RunChat,
		Clipboard:     clipboard.WriteAll,
		IsTerminal:    isTerminal,
		TerminalWidth: terminalWidth,
		Now:           time.Now,
	}
}

// nopCloser adapts an injected store so commands do not close it
type nopCloser struct{ store.Store }

func (nopCloser) Close() error { return nil }
