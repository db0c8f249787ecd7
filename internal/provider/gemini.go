package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	"github.com/diogo/dland/internal/config"
	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
)

const (
	maxErrorBody    = 4096
	maxResponseBody = 16 * 1024 * 1024
)

// Gemini is the primary text provider. It keeps the system instruction and
// the conversation turns itself and sends them in full with every request.
type Gemini struct {
	doer     Doer
	logger   *slog.Logger
	apiKey   string
	endpoint string
	model    string
	stream   bool

	mu          sync.Mutex
	instruction string
	history     []Turn
}

// NewGemini creates the primary provider from cfg. Without WithDoer a
// transport is built with default network settings.
func NewGemini(cfg config.PrimaryConfig, opts ...Option) (*Gemini, error) {
	o := applyOptions(opts)

	g := &Gemini{
		doer:     o.doer,
		logger:   o.logger.With("component", "gemini"),
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		stream:   cfg.Stream,
	}
	if o.model != "" {
		g.model = o.model
	}
	if o.endpoint != "" {
		g.endpoint = strings.TrimRight(o.endpoint, "/")
	}
	if o.stream != nil {
		g.stream = *o.stream
	}
	if g.endpoint == "" {
		g.endpoint = models.EndpointGemini
	}
	if g.model == "" {
		g.model = models.DefaultPrimaryModel
	}

	if g.doer == nil {
		def := config.DefaultConfig()
		t, err := NewTransport(def.Timeout(), def.Network.RequestsPerMinute)
		if err != nil {
			return nil, err
		}
		g.doer = t
	}

	return g, nil
}

// HasCredentials reports whether an API key is configured
func (g *Gemini) HasCredentials() bool { return g.apiKey != "" }

// Model returns the model identifier in use
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Start(instruction string, history []models.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if instruction != "" {
		g.instruction = instruction
	}
	g.history = toTurns(history)
}

func (g *Gemini) Restore(instruction string, history []models.Message) {
	g.Start(instruction, history)
}

func (g *Gemini) Reset(instruction string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if instruction != "" {
		g.instruction = instruction
	}
	g.history = nil
}

func (g *Gemini) History() []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Turn, len(g.history))
	copy(out, g.history)
	return out
}

func (g *Gemini) Instruction() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.instruction
}

// toTurns keeps user and model messages with text; system notices are local only.
// Skipped messages can leave two turns of one role side by side, so those are merged.
func toTurns(msgs []models.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case models.RoleUser:
			turns = appendTurn(turns, Turn{Role: "user", Text: m.Text})
		case models.RoleModel:
			turns = appendTurn(turns, Turn{Role: "model", Text: m.Text})
		}
	}
	return turns
}

// appendTurn adds t, folding it into the last turn when the roles match so
// the contents sent to Gemini always alternate.
func appendTurn(turns []Turn, t Turn) []Turn {
	if n := len(turns); n > 0 && turns[n-1].Role == t.Role {
		turns[n-1].Text += "\n\n" + t.Text
		return turns
	}
	return append(turns, t)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

func (g *Gemini) url() string {
	if g.stream {
		return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.endpoint, g.model)
	}
	return fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
}

// Stream appends the user turn to the history and sends the whole history.
// The reply is appended as a model turn when the stream ends cleanly.
func (g *Gemini) Stream(ctx context.Context, req Request) (Stream, error) {
	if g.apiKey == "" {
		return nil, apierrors.NewMissingKeyError("gemini")
	}
	if req.Attachment != nil {
		return nil, fmt.Errorf("gemini provider does not accept attachments")
	}

	g.mu.Lock()
	g.history = appendTurn(g.history, Turn{Role: "user", Text: req.Text})
	payload := geminiRequest{Contents: make([]geminiContent, len(g.history))}
	for i, t := range g.history {
		payload.Contents[i] = geminiContent{Role: t.Role, Parts: []geminiPart{{Text: t.Text}}}
	}
	if g.instruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.instruction}}}
	}
	g.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := g.url()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	if g.stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	log := logging.FromContext(ctx, g.logger)
	log.Debug("sending request", "model", g.model, "turns", len(payload.Contents), "stream", g.stream)

	resp, err := g.doer.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierrors.NewNetworkError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := readLimited(resp.Body, maxErrorBody)
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			log.Warn("credentials rejected", "status", resp.StatusCode)
		}
		return nil, apierrors.NewUpstreamError(resp.StatusCode, endpoint, string(errBody))
	}

	var reply strings.Builder
	onDone := func() {
		g.mu.Lock()
		g.history = append(g.history, Turn{Role: "model", Text: reply.String()})
		g.mu.Unlock()
		log.Debug("reply recorded", "chars", reply.Len())
	}

	if !g.stream {
		return g.singleResponse(ctx, resp, endpoint, &reply, onDone), nil
	}

	sse := newSSEReader(resp.Body)
	pull := func() (string, error) {
		for {
			frame, err := sse.Next()
			if err == io.EOF {
				return "", io.EOF
			}
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "", apierrors.NewNetworkError(endpoint, err)
			}
			if !gjson.ValidBytes(frame) {
				log.Debug("skipping malformed frame", "frame", truncate(string(frame), 200))
				continue
			}
			text, err := parseGeminiFrame(frame, endpoint)
			if err != nil {
				return "", err
			}
			reply.WriteString(text)
			return text, nil
		}
	}

	return &funcStream{pull: pull, closer: resp.Body, onDone: onDone}, nil
}

func (g *Gemini) singleResponse(ctx context.Context, resp *http.Response, endpoint string, reply *strings.Builder, onDone func()) Stream {
	read := false
	pull := func() (string, error) {
		if read {
			return "", io.EOF
		}
		read = true
		data, err := readLimited(resp.Body, maxResponseBody)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", apierrors.NewNetworkError(endpoint, err)
		}
		if !gjson.ValidBytes(data) {
			return "", apierrors.NewUpstreamError(resp.StatusCode, endpoint, string(data))
		}
		text, err := parseGeminiFrame(data, endpoint)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", apierrors.NewUpstreamMessageError(resp.StatusCode, endpoint, apierrors.ErrNoContent.Error())
		}
		reply.WriteString(text)
		return text, nil
	}
	return &funcStream{pull: pull, closer: resp.Body, onDone: onDone}
}

// parseGeminiFrame extracts the text of one response object. An embedded
// error object becomes an UpstreamError.
func parseGeminiFrame(frame []byte, endpoint string) (string, error) {
	result := gjson.ParseBytes(frame)
	// streamGenerateContent without alt=sse wraps frames in an array
	if result.IsArray() {
		var sb strings.Builder
		for _, item := range result.Array() {
			text, err := parseGeminiFrame([]byte(item.Raw), endpoint)
			if err != nil {
				return sb.String(), err
			}
			sb.WriteString(text)
		}
		return sb.String(), nil
	}

	if e := result.Get("error"); e.Exists() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.Raw
		}
		return "", apierrors.NewUpstreamMessageError(int(e.Get("code").Int()), endpoint, msg)
	}

	var sb strings.Builder
	for _, part := range result.Get("candidates.0.content.parts").Array() {
		if part.Get("thought").Bool() {
			continue
		}
		sb.WriteString(part.Get("text").String())
	}
	if sb.Len() == 0 {
		if reason := result.Get("promptFeedback.blockReason").String(); reason != "" {
			return "", apierrors.NewUpstreamMessageError(0, endpoint, "prompt blocked: "+reason)
		}
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsCanceled reports whether err comes from a canceled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
