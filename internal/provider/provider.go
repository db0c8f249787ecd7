// Package provider implements the streaming LLM backends used by a chat session.
package provider

import (
	"context"
	"io"
	"log/slog"

	http "github.com/bogdanfinn/fhttp"

	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
)

// Doer sends an HTTP request. tls_client.HttpClient and Transport satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one conversation turn handed to a provider
type Request struct {
	Text       string
	Attachment *models.Attachment
	// History is the log before this turn. Stateful providers ignore it.
	History []models.Message
}

// Stream is a lazily produced sequence of text fragments.
//
//	for s.Next() {
//		fmt.Print(s.Chunk())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Close releases the underlying response and may be called at any time.
type Stream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

// Provider produces a reply stream for a turn
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Turn is an entry of a stateful provider's own history
type Turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// PrimaryProvider is a Provider that keeps its own conversation history
// and system instruction between turns.
type PrimaryProvider interface {
	Provider
	// Start sets the instruction (empty keeps the current one) and replaces history
	Start(instruction string, history []models.Message)
	// Restore is Start under another name, used when re-synchronizing
	Restore(instruction string, history []models.Message)
	// Reset clears history; a non-empty instruction replaces the current one
	Reset(instruction string)
	History() []Turn
	Instruction() string
}

// Option configures a provider
type Option func(*clientOptions)

type clientOptions struct {
	doer     Doer
	logger   *slog.Logger
	model    string
	endpoint string
	stream   *bool
}

// WithDoer sets the HTTP client used for requests
func WithDoer(d Doer) Option {
	return func(o *clientOptions) { o.doer = d }
}

// WithLogger sets the logger for diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithModel overrides the configured model
func WithModel(model string) Option {
	return func(o *clientOptions) { o.model = model }
}

// WithEndpoint overrides the configured base URL
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithStreaming selects streaming or single-response mode where supported
func WithStreaming(enabled bool) Option {
	return func(o *clientOptions) { o.stream = &enabled }
}

func applyOptions(opts []Option) clientOptions {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return o
}

// funcStream adapts a pull function into a Stream. pull returns io.EOF at the
// end; onDone runs once after a clean end, before Next reports false.
type funcStream struct {
	pull   func() (string, error)
	closer io.Closer
	onDone func()

	chunk  string
	err    error
	done   bool
	closed bool
}

func (s *funcStream) Next() bool {
	if s.done {
		return false
	}
	for {
		chunk, err := s.pull()
		if err == io.EOF {
			s.finish(nil)
			return false
		}
		if err != nil {
			s.finish(err)
			return false
		}
		if chunk == "" {
			continue
		}
		s.chunk = chunk
		return true
	}
}

func (s *funcStream) finish(err error) {
	s.done = true
	s.chunk = ""
	s.err = err
	if err == nil && s.onDone != nil {
		s.onDone()
	}
	s.Close()
}

func (s *funcStream) Chunk() string { return s.chunk }

func (s *funcStream) Err() error { return s.err }

func (s *funcStream) Close() error {
	if s.closed || s.closer == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.closer.Close()
}

// NewStaticStream returns a Stream yielding chunks in order
func NewStaticStream(chunks ...string) Stream {
	i := 0
	return &funcStream{pull: func() (string, error) {
		if i >= len(chunks) {
			return "", io.EOF
		}
		i++
		return chunks[i-1], nil
	}}
}

// NewErrorStream returns a Stream that yields chunks and then fails with err
func NewErrorStream(err error, chunks ...string) Stream {
	i := 0
	return &funcStream{pull: func() (string, error) {
		if i >= len(chunks) {
			return "", err
		}
		i++
		return chunks[i-1], nil
	}}
}
