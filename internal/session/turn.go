package session

import (
	"context"
	"strings"
	"time"

	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/provider"
)

// TurnResult describes a finished turn
type TurnResult struct {
	Route models.Route
	// Reply is the model message as committed
	Reply models.Message
	// Err is the provider failure behind a failed turn
	Err error
}

// Failed reports whether the provider failed
func (r *TurnResult) Failed() bool { return r.Err != nil }

// SendTurn runs one turn to completion on the calling goroutine.
//
// It returns ErrBusy if a turn is already running and ErrEmptyTurn when
// there is nothing to send; in both cases nothing changes. Provider
// failures do not produce an error: they end the turn with FailureNotice
// appended to the log and are reported in TurnResult.Err.
func (o *Orchestrator) SendTurn(ctx context.Context, text string, attachment *models.Attachment) (*TurnResult, error) {
	start := o.now()

	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(text) == "" && attachment == nil {
		o.mu.Unlock()
		return nil, ErrEmptyTurn
	}

	o.interacted = true
	prior := models.CloneMessages(o.messages)

	user := models.Message{
		ID:         o.newID(),
		Role:       models.RoleUser,
		Text:       text,
		Timestamp:  start.UnixMilli(),
		Attachment: attachment,
	}
	o.messages = append(o.messages, user)
	o.phase = PhaseUserMessageAppended
	appendedUser := o.eventLocked(EventAppended, user)

	placeholder := models.Message{
		ID:          o.newID(),
		Role:        models.RoleModel,
		IsStreaming: true,
		Timestamp:   o.now().UnixMilli(),
	}
	o.messages = append(o.messages, placeholder)
	appendedReply := o.eventLocked(EventAppended, placeholder)
	o.persistLocked()

	route := models.RouteFor(attachment)
	resync := route == models.RoutePrimary && !o.state.PrimarySynced
	instruction := o.instructionLocked()
	o.state.Route = route
	if route == models.RouteVision {
		// The primary provider never sees this turn
		o.state.PrimarySynced = false
	}
	o.phase = PhaseProviderSelected
	o.mu.Unlock()

	o.publish(appendedUser, appendedReply)

	ctx = logging.WithTurnID(ctx, user.ID)
	log := logging.FromContext(ctx, o.logger)
	log.Debug("turn started", "route", route, "resync", resync)

	var (
		stream provider.Stream
		err    error
	)
	if route == models.RouteVision {
		stream, err = o.vision.Stream(ctx, provider.Request{Text: text, Attachment: attachment, History: prior})
	} else {
		if resync {
			o.primary.Restore(instruction, prior)
			o.mu.Lock()
			o.state.PrimarySynced = true
			o.mu.Unlock()
		}
		stream, err = o.primary.Stream(ctx, provider.Request{Text: text})
	}
	if err != nil {
		return o.fail(ctx, route, placeholder.ID, start, err), nil
	}
	defer stream.Close()

	o.setPhase(PhaseStreaming)
	for stream.Next() {
		o.appendChunk(placeholder.ID, stream.Chunk())
	}
	if err := stream.Err(); err != nil {
		return o.fail(ctx, route, placeholder.ID, start, err), nil
	}

	return o.commit(ctx, route, placeholder.ID, start), nil
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) indexLocked(id string) int {
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// appendChunk grows the streaming reply. Growth is published, not persisted.
func (o *Orchestrator) appendChunk(id, chunk string) {
	o.mu.Lock()
	i := o.indexLocked(id)
	if i < 0 {
		o.mu.Unlock()
		return
	}
	o.messages[i].Text += chunk
	ev := o.eventLocked(EventUpdated, o.messages[i])
	o.mu.Unlock()

	o.publish(ev)
}

// finishLocked clears the streaming flag and records the elapsed time
func (o *Orchestrator) finishLocked(id string, start int64) models.Message {
	i := o.indexLocked(id)
	if i < 0 {
		return models.Message{}
	}
	o.messages[i].IsStreaming = false
	o.messages[i].ExecutionTime = o.now().UnixMilli() - start
	return o.messages[i]
}

func (o *Orchestrator) commit(ctx context.Context, route models.Route, id string, start time.Time) *TurnResult {
	o.mu.Lock()
	reply := o.finishLocked(id, start.UnixMilli())
	o.phase = PhaseCommitted
	o.persistLocked()
	ev := o.eventLocked(EventCommitted, reply)
	o.mu.Unlock()

	logging.FromContext(ctx, o.logger).Info("turn committed",
		"route", route, "chars", len(reply.Text), "duration_ms", reply.ExecutionTime)

	o.publish(ev)
	o.setPhase(PhaseIdle)
	return &TurnResult{Route: route, Reply: reply}
}

// fail keeps the partial reply, appends FailureNotice and marks the primary
// provider out of sync when it was the one that failed.
func (o *Orchestrator) fail(ctx context.Context, route models.Route, id string, start time.Time, cause error) *TurnResult {
	o.mu.Lock()
	reply := o.finishLocked(id, start.UnixMilli())
	o.phase = PhaseFailed
	if route == models.RoutePrimary {
		// The provider holds a user turn with no reply
		o.state.PrimarySynced = false
	}
	notice := models.Message{
		ID:        o.newID(),
		Role:      models.RoleSystem,
		Text:      FailureNotice,
		Timestamp: o.now().UnixMilli(),
	}
	updated := o.eventLocked(EventUpdated, reply)
	o.messages = append(o.messages, notice)
	o.persistLocked()
	appended := o.eventLocked(EventAppended, notice)
	committed := o.eventLocked(EventCommitted, reply)
	o.mu.Unlock()

	logging.FromContext(ctx, o.logger).Error("turn failed", "route", route, "error", cause)

	o.publish(updated, appended, committed)
	o.setPhase(PhaseIdle)
	return &TurnResult{Route: route, Reply: reply, Err: cause}
}
