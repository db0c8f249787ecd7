package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	"github.com/diogo/dland/internal/config"
	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
)

// VisionErrorMessage replaces the reply when an image request fails
const VisionErrorMessage = "Sorry, I encountered an error processing your image request."

// OpenRouter is the stateless vision provider. Every request carries the
// full prior log converted to chat-completion messages.
type OpenRouter struct {
	doer      Doer
	logger    *slog.Logger
	apiKey    string
	endpoint  string
	model     string
	referer   string
	title     string
	reasoning bool
}

// NewOpenRouter creates the vision provider from cfg
func NewOpenRouter(cfg config.VisionConfig, opts ...Option) (*OpenRouter, error) {
	o := applyOptions(opts)

	p := &OpenRouter{
		doer:      o.doer,
		logger:    o.logger.With("component", "openrouter"),
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		referer:   cfg.Referer,
		title:     cfg.Title,
		reasoning: cfg.Reasoning,
	}
	if o.model != "" {
		p.model = o.model
	}
	if o.endpoint != "" {
		p.endpoint = strings.TrimRight(o.endpoint, "/")
	}
	if p.endpoint == "" {
		p.endpoint = models.EndpointOpenRouter
	}
	if p.model == "" {
		p.model = models.DefaultVisionModel
	}

	if p.doer == nil {
		def := config.DefaultConfig()
		t, err := NewTransport(def.Timeout(), def.Network.RequestsPerMinute)
		if err != nil {
			return nil, err
		}
		p.doer = t
	}

	return p, nil
}

// HasCredentials reports whether an API key is configured
func (p *OpenRouter) HasCredentials() bool { return p.apiKey != "" }

// Model returns the model identifier in use
func (p *OpenRouter) Model() string { return p.model }

type chatImageURL struct {
	URL string `json:"url"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

// chatMessage content is either a string or a []chatPart
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatReasoning struct {
	Enabled bool `json:"enabled"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	Reasoning *chatReasoning `json:"reasoning,omitempty"`
}

func chatRole(r models.Role) string {
	switch r {
	case models.RoleModel:
		return "assistant"
	case models.RoleUser:
		return "user"
	default:
		return "system"
	}
}

func contentParts(text string, att *models.Attachment) []chatPart {
	var parts []chatPart
	if text != "" {
		parts = append(parts, chatPart{Type: "text", Text: text})
	}
	if att != nil {
		parts = append(parts, chatPart{Type: "image_url", ImageURL: &chatImageURL{URL: att.DataURL()}})
	}
	return parts
}

// buildMessages converts the prior log and appends the current turn.
// Text-only messages use plain string content.
func buildMessages(history []models.Message, text string, att *models.Attachment) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+1)
	for _, m := range history {
		parts := contentParts(m.Text, m.Attachment)
		if len(parts) == 0 {
			continue
		}
		var content any = parts
		if len(parts) == 1 && parts[0].Type == "text" {
			content = parts[0].Text
		}
		msgs = append(msgs, chatMessage{Role: chatRole(m.Role), Content: content})
	}

	current := []chatPart{{Type: "text", Text: text}}
	if att != nil {
		current = append(current, chatPart{Type: "image_url", ImageURL: &chatImageURL{URL: att.DataURL()}})
	}
	return append(msgs, chatMessage{Role: "user", Content: current})
}

// Stream sends the turn and streams the reply. Apart from missing
// credentials it never fails: any error is logged and the stream yields
// VisionErrorMessage so the user always sees a reply.
func (p *OpenRouter) Stream(ctx context.Context, req Request) (Stream, error) {
	if p.apiKey == "" {
		return nil, apierrors.NewMissingKeyError("openrouter")
	}

	log := logging.FromContext(ctx, p.logger)

	payload := chatRequest{
		Model:    p.model,
		Messages: buildMessages(req.History, req.Text, req.Attachment),
		Stream:   true,
	}
	if p.reasoning {
		payload.Reasoning = &chatReasoning{Enabled: true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode request", "error", err)
		return NewStaticStream(VisionErrorMessage), nil
	}

	endpoint := p.endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request", "error", err)
		return NewStaticStream(VisionErrorMessage), nil
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.referer != "" {
		httpReq.Header.Set("HTTP-Referer", p.referer)
	}
	if p.title != "" {
		httpReq.Header.Set("X-Title", p.title)
	}

	log.Debug("sending request", "model", p.model, "messages", len(payload.Messages))

	resp, err := p.doer.Do(httpReq)
	if err != nil {
		log.Error("request failed", "error", apierrors.NewNetworkError(endpoint, err))
		return NewStaticStream(VisionErrorMessage), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := readLimited(resp.Body, maxErrorBody)
		resp.Body.Close()
		log.Error("upstream error", "error", apierrors.NewUpstreamError(resp.StatusCode, endpoint, string(errBody)))
		return NewStaticStream(VisionErrorMessage), nil
	}

	sse := newSSEReader(resp.Body)
	failed := false
	pull := func() (string, error) {
		if failed {
			return "", io.EOF
		}
		for {
			frame, err := sse.Next()
			if err == io.EOF {
				return "", io.EOF
			}
			if err != nil {
				failed = true
				log.Error("stream read failed", "error", err)
				return VisionErrorMessage, nil
			}
			if string(frame) == doneSentinel {
				return "", io.EOF
			}
			if !gjson.ValidBytes(frame) {
				log.Debug("skipping malformed frame", "frame", truncate(string(frame), 200))
				continue
			}
			parsed := gjson.ParseBytes(frame)
			if e := parsed.Get("error"); e.Exists() {
				failed = true
				log.Error("upstream error in stream", "error", e.Get("message").String())
				return VisionErrorMessage, nil
			}
			return parsed.Get("choices.0.delta.content").String(), nil
		}
	}

	return &funcStream{pull: pull, closer: resp.Body}, nil
}
