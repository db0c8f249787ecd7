package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/provider"
)

// reply scripts one provider response
type reply struct {
	chunks  []string
	openErr error // returned by Stream
	midErr  error // returned after chunks
	gate    chan struct{}
}

// fakePrimary mirrors a stateful provider: it records the user turn on send
// and the reply when the stream ends cleanly.
type fakePrimary struct {
	mu          sync.Mutex
	instruction string
	history     []provider.Turn
	replies     []reply
	requests    []provider.Request
	restores    int
	resets      int
}

func (f *fakePrimary) script(r ...reply) { f.replies = append(f.replies, r...) }

func (f *fakePrimary) Start(instruction string, msgs []models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if instruction != "" {
		f.instruction = instruction
	}
	f.history = turnsOf(msgs)
}

func (f *fakePrimary) Restore(instruction string, msgs []models.Message) {
	f.mu.Lock()
	f.restores++
	f.mu.Unlock()
	f.Start(instruction, msgs)
}

func (f *fakePrimary) Reset(instruction string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if instruction != "" {
		f.instruction = instruction
	}
	f.history = nil
}

func (f *fakePrimary) History() []provider.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Turn{}, f.history...)
}

func (f *fakePrimary) Instruction() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instruction
}

func (f *fakePrimary) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	r := reply{chunks: []string{"ok"}}
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	}
	if r.openErr != nil {
		if !errors.Is(r.openErr, errAuth) {
			f.history = append(f.history, provider.Turn{Role: "user", Text: req.Text})
		}
		return nil, r.openErr
	}
	f.history = append(f.history, provider.Turn{Role: "user", Text: req.Text})

	var full string
	for _, c := range r.chunks {
		full += c
	}
	return &scriptedStream{
		ctx:    ctx,
		chunks: r.chunks,
		err:    r.midErr,
		gate:   r.gate,
		onDone: func() {
			f.mu.Lock()
			f.history = append(f.history, provider.Turn{Role: "model", Text: full})
			f.mu.Unlock()
		},
	}, nil
}

var errAuth = errors.New("auth")

// fakeVision is a stateless provider
type fakeVision struct {
	mu       sync.Mutex
	replies  []reply
	requests []provider.Request
}

func (f *fakeVision) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	r := reply{chunks: []string{"an image"}}
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	}
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &scriptedStream{ctx: ctx, chunks: r.chunks, err: r.midErr, gate: r.gate}, nil
}

// scriptedStream yields chunks; if gate is set it waits on it before the first chunk
type scriptedStream struct {
	ctx    context.Context
	chunks []string
	err    error
	gate   chan struct{}
	onDone func()

	i      int
	cur    string
	final  error
	done   bool
	closed bool
}

func (s *scriptedStream) Next() bool {
	if s.done {
		return false
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-s.ctx.Done():
			s.done, s.final = true, s.ctx.Err()
			return false
		}
		s.gate = nil
	}
	if s.i < len(s.chunks) {
		s.cur = s.chunks[s.i]
		s.i++
		return true
	}
	s.done = true
	s.final = s.err
	if s.err == nil && s.onDone != nil {
		s.onDone()
	}
	return false
}

func (s *scriptedStream) Chunk() string { return s.cur }
func (s *scriptedStream) Err() error    { return s.final }
func (s *scriptedStream) Close() error  { s.closed = true; return nil }

func turnsOf(msgs []models.Message) []provider.Turn {
	var turns []provider.Turn
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case models.RoleUser:
			turns = append(turns, provider.Turn{Role: "user", Text: m.Text})
		case models.RoleModel:
			turns = append(turns, provider.Turn{Role: "model", Text: m.Text})
		}
	}
	return turns
}

// clock advances by step on every call
type clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC), step: 100 * time.Millisecond}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}
