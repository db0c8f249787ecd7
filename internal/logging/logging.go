// Package logging builds the structured logger used across dland.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type ctxKey string

const ctxKeyTurnID ctxKey = "turn_id"

// New returns a JSON logger writing to path. The returned closer releases the file.
// Logs go to a file because the TUI owns the terminal.
func New(path, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWithWriter(f, level), f, nil
}

// NewWithWriter returns a JSON logger writing to w
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a config level name to a slog level; unknown names mean info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTurnID stores a turn id in the context
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTurnID, id)
}

// FromContext adds turn_id to logger if ctx carries one
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id, _ := ctx.Value(ctxKeyTurnID).(string)
	if id == "" {
		return logger
	}
	return logger.With("turn_id", id)
}
