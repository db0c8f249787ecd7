package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/history"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/store"
)

type harness struct {
	o       *Orchestrator
	primary *fakePrimary
	vision  *fakeVision
	hist    *history.Store
	kv      *store.MemoryStore

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, seed map[string][]models.Message) *harness {
	t.Helper()
	h := &harness{
		primary: &fakePrimary{},
		vision:  &fakeVision{},
		kv:      store.NewMemory(),
	}
	h.hist = history.NewStore(h.kv, nil)
	for persona, msgs := range seed {
		require.NoError(t, h.hist.SaveLog(persona, msgs))
	}

	o, err := New(Options{
		History:  h.hist,
		Primary:  h.primary,
		Vision:   h.vision,
		Settings: models.DefaultSettings(),
		Now:      newClock().Now,
	})
	require.NoError(t, err)
	o.Subscribe(func(ev Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	})
	h.o = o
	return h
}

func (h *harness) send(t *testing.T, text string, att *models.Attachment) *TurnResult {
	t.Helper()
	res, err := h.o.SendTurn(context.Background(), text, att)
	require.NoError(t, err)
	return res
}

func (h *harness) stored(t *testing.T, persona string) []models.Message {
	t.Helper()
	msgs, err := h.hist.LoadLog(persona)
	require.NoError(t, err)
	return msgs
}

func (h *harness) eventKinds() []EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]EventKind, len(h.events))
	for i, ev := range h.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

var image = &models.Attachment{Content: "aGVsbG8=", MIMEType: "image/png"}

func TestNew_StartsPrimaryWithSavedLog(t *testing.T) {
	saved := []models.Message{
		{ID: "1", Role: models.RoleUser, Text: "hi", Timestamp: 1},
		{ID: "2", Role: models.RoleModel, Text: "hello", Timestamp: 2},
	}
	h := newHarness(t, map[string][]models.Message{"general": saved})

	assert.Equal(t, "general", h.o.Persona())
	assert.Equal(t, saved, h.o.Messages())
	assert.Equal(t, turnsOf(saved), h.primary.History())
	assert.Contains(t, h.primary.Instruction(), "You are Dland, an AI assistant.")
	assert.Equal(t, State{Route: models.RoutePrimary, PrimarySynced: true}, h.o.State())
	assert.Equal(t, PhaseIdle, h.o.Phase())
}

func TestNew_UnknownPersona(t *testing.T) {
	_, err := New(Options{
		History: history.NewStore(store.NewMemory(), nil),
		Primary: &fakePrimary{},
		Vision:  &fakeVision{},
		Persona: "cobol",
	})
	assert.Error(t, err)
}

func TestSendTurn_NTurnsYieldTwoNMessages(t *testing.T) {
	h := newHarness(t, nil)

	const n = 4
	for i := 0; i < n; i++ {
		res := h.send(t, "question", nil)
		assert.False(t, res.Failed())
		assert.Equal(t, models.RoutePrimary, res.Route)
	}

	msgs := h.o.Messages()
	require.Len(t, msgs, 2*n)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, m.Role)
		} else {
			assert.Equal(t, models.RoleModel, m.Role)
			assert.False(t, m.IsStreaming)
			assert.Positive(t, m.ExecutionTime)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, m.Timestamp, msgs[i-1].Timestamp, "timestamps are non-decreasing")
		}
	}

	assert.Equal(t, msgs, h.stored(t, "general"), "log is persisted after commit")
}

func TestSendTurn_HelloScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.script(reply{chunks: []string{"Hi", " there", "!"}})

	res := h.send(t, "Hello", nil)
	assert.Equal(t, "Hi there!", res.Reply.Text)

	msgs := h.o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, models.RoleModel, msgs[1].Role)
	assert.Equal(t, "Hi there!", msgs[1].Text)

	assert.Equal(t, turnsOf(msgs), h.primary.History(), "primary history holds both turns")
}

func TestSendTurn_PublishesGrowingText(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.script(reply{chunks: []string{"a", "b", "c"}})
	h.send(t, "go", nil)

	assert.Equal(t, []EventKind{
		EventAppended, EventAppended,
		EventUpdated, EventUpdated, EventUpdated,
		EventCommitted,
	}, h.eventKinds())

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.True(t, h.events[1].Message.IsStreaming, "placeholder is streaming")
	assert.Empty(t, h.events[1].Message.Text)

	prev := ""
	for _, ev := range h.events[2:5] {
		assert.True(t, strings.HasPrefix(ev.Message.Text, prev), "visible text only grows")
		assert.True(t, ev.Message.IsStreaming)
		prev = ev.Message.Text
	}
	assert.Equal(t, "abc", prev)
	assert.False(t, h.events[5].Message.IsStreaming)
}

func TestSendTurn_ObserverSeesCommittedPhase(t *testing.T) {
	h := newHarness(t, nil)
	var phases []Phase
	h.o.Subscribe(func(ev Event) {
		if ev.Kind == EventCommitted {
			phases = append(phases, h.o.Phase())
		}
	})

	h.send(t, "go", nil)
	assert.Equal(t, []Phase{PhaseCommitted}, phases)
	assert.Equal(t, PhaseIdle, h.o.Phase())
}

func TestSendTurn_VisionRoutingAndResync(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.script(reply{chunks: []string{"first answer"}}, reply{chunks: []string{"third answer"}})
	h.vision.replies = []reply{{chunks: []string{"a ", "cat"}}}

	h.send(t, "first", nil)
	before := h.primary.History()

	res := h.send(t, "what is this?", image)
	assert.Equal(t, models.RouteVision, res.Route)
	assert.Equal(t, "a cat", res.Reply.Text)

	require.Len(t, h.vision.requests, 1)
	vreq := h.vision.requests[0]
	assert.Equal(t, image, vreq.Attachment)
	assert.Len(t, vreq.History, 2, "vision receives the log before this turn")
	assert.Equal(t, before, h.primary.History(), "vision turn leaves primary history untouched")
	assert.Equal(t, State{Route: models.RouteVision, PrimarySynced: false}, h.o.State())

	restores := h.primary.restores
	h.send(t, "third", nil)
	assert.Equal(t, restores+1, h.primary.restores, "primary is reconciled before the next text turn")
	assert.Equal(t, turnsOf(h.o.Messages()), h.primary.History(), "primary history mirrors the log")
	assert.Equal(t, State{Route: models.RoutePrimary, PrimarySynced: true}, h.o.State())

	h.send(t, "fourth", nil)
	assert.Equal(t, restores+1, h.primary.restores, "no reconciliation while in sync")
}

func TestSendTurn_AttachmentWithoutText(t *testing.T) {
	h := newHarness(t, nil)
	res := h.send(t, "", image)
	assert.Equal(t, models.RouteVision, res.Route)
	assert.Len(t, h.o.Messages(), 2)
}

func TestSendTurn_PrimaryUpstreamFailure(t *testing.T) {
	h := newHarness(t, nil)
	upstream := apierrors.NewUpstreamError(503, "models/x", "unavailable")
	h.primary.script(reply{openErr: upstream})

	res, err := h.o.SendTurn(context.Background(), "hello", nil)
	require.NoError(t, err, "provider failures do not escape the turn")
	assert.True(t, res.Failed())
	assert.True(t, apierrors.IsUpstreamError(res.Err))

	msgs := h.o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleModel, msgs[1].Role)
	assert.Empty(t, msgs[1].Text, "no text added to the placeholder")
	assert.False(t, msgs[1].IsStreaming)
	assert.Equal(t, models.RoleSystem, msgs[2].Role)
	assert.Equal(t, FailureNotice, msgs[2].Text)
	assert.Equal(t, msgs, h.stored(t, "general"))

	assert.False(t, h.o.State().PrimarySynced)
	assert.Equal(t, PhaseIdle, h.o.Phase())

	h.send(t, "again", nil)
	assert.Equal(t, 1, h.primary.restores, "the dangling user turn is reconciled away")
	assert.Equal(t, turnsOf(h.o.Messages()), h.primary.History())
}

func TestSendTurn_MidStreamFailureKeepsPartial(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.script(reply{chunks: []string{"Part", "ial"}, midErr: apierrors.NewNetworkError("e", context.DeadlineExceeded)})

	res := h.send(t, "hello", nil)
	assert.True(t, apierrors.IsNetworkError(res.Err))

	msgs := h.o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Partial", msgs[1].Text)
	assert.False(t, msgs[1].IsStreaming)
	assert.Positive(t, msgs[1].ExecutionTime)
	assert.Equal(t, FailureNotice, msgs[2].Text)

	kinds := h.eventKinds()
	assert.Equal(t, []EventKind{EventUpdated, EventAppended, EventCommitted}, kinds[len(kinds)-3:])
}

func TestSendTurn_VisionAuthFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.vision.replies = []reply{{openErr: apierrors.NewMissingKeyError("openrouter")}}

	res := h.send(t, "look", image)
	assert.True(t, apierrors.IsAuthError(res.Err))
	assert.Equal(t, FailureNotice, h.o.Messages()[2].Text)
}

func TestSendTurn_Rejections(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.o.SendTurn(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyTurn)
	assert.Empty(t, h.o.Messages())
	assert.Empty(t, h.eventKinds())
}

func TestSendTurn_BusyWhileStreaming(t *testing.T) {
	h := newHarness(t, nil)
	gate := make(chan struct{})
	h.primary.script(reply{chunks: []string{"done"}, gate: gate})

	done := make(chan *TurnResult)
	go func() {
		res, _ := h.o.SendTurn(context.Background(), "slow", nil)
		done <- res
	}()

	require.Eventually(t, func() bool { return h.o.Phase() == PhaseStreaming }, time.Second, 5*time.Millisecond)
	assert.True(t, h.o.Busy())

	stored := h.stored(t, "general")
	require.Len(t, stored, 2, "user message and placeholder are persisted before streaming")

	_, err := h.o.SendTurn(context.Background(), "another", nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, h.o.SwitchPersona("python"), ErrBusy)
	assert.ErrorIs(t, h.o.ResetConversation(), ErrBusy)
	assert.ErrorIs(t, h.o.ImportLog([]byte(`[]`)), ErrBusy)
	assert.Len(t, h.o.Messages(), 2, "rejected operations change nothing")

	close(gate)
	res := <-done
	assert.Equal(t, "done", res.Reply.Text)
	assert.False(t, h.o.Busy())
}

func TestSendTurn_Cancelled(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.script(reply{chunks: []string{"never"}, gate: make(chan struct{})})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for h.o.Phase() != PhaseStreaming {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := h.o.SendTurn(ctx, "slow", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, PhaseIdle, h.o.Phase())
}

func TestSwitchPersona_RoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "general one", nil)
	h.send(t, "general two", nil)
	general := h.o.Messages()

	require.NoError(t, h.o.SwitchPersona("python"))
	assert.Empty(t, h.o.Messages())
	assert.Empty(t, h.primary.History())
	assert.Contains(t, h.primary.Instruction(), "Python tutor")

	h.send(t, "what is a list?", nil)
	python := h.o.Messages()

	require.NoError(t, h.o.SwitchPersona("general"))
	assert.Equal(t, general, h.o.Messages(), "switching back restores the persisted log")
	assert.Equal(t, turnsOf(general), h.primary.History())

	require.NoError(t, h.o.SwitchPersona("python"))
	assert.Equal(t, python, h.o.Messages())

	assert.Equal(t, EventReset, h.eventKinds()[len(h.eventKinds())-1])
}

func TestSwitchPersona_ClearsVisionState(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "look", image)
	require.False(t, h.o.State().PrimarySynced)

	require.NoError(t, h.o.SwitchPersona("linux"))
	assert.Equal(t, State{Route: models.RoutePrimary, PrimarySynced: true}, h.o.State())
}

func TestSwitchPersona_Unknown(t *testing.T) {
	h := newHarness(t, nil)
	assert.Error(t, h.o.SwitchPersona("cobol"))
	assert.Equal(t, "general", h.o.Persona())
}

func TestResetConversation(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "hello", nil)
	h.send(t, "look", image)

	require.NoError(t, h.o.ResetConversation())
	assert.Empty(t, h.o.Messages())
	assert.Empty(t, h.primary.History())
	assert.Equal(t, State{Route: models.RoutePrimary, PrimarySynced: true}, h.o.State())

	_, ok, err := h.kv.Get(models.HistoryKey("general"))
	require.NoError(t, err)
	assert.False(t, ok, "persisted entry is removed")

	require.NoError(t, h.o.SwitchPersona("linux"))
	require.NoError(t, h.o.SwitchPersona("general"))
	assert.Empty(t, h.o.Messages())
}

func TestExportImport_RoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "hello", nil)
	h.send(t, "look", image)
	original := h.o.Messages()

	data, err := h.o.ExportLog()
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 4)

	require.NoError(t, h.o.ResetConversation())
	require.NoError(t, h.o.ImportLog(data))

	assert.Equal(t, original, h.o.Messages())
	assert.Equal(t, original, h.stored(t, "general"))
	assert.Equal(t, turnsOf(original), h.primary.History())
	assert.True(t, h.o.State().PrimarySynced)
}

func TestImportLog_InvalidLeavesLogUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "hello", nil)
	before := h.o.Messages()
	restores := h.primary.restores

	for _, data := range []string{`{"role":"user"}`, `[{"id":`, `"text"`} {
		err := h.o.ImportLog([]byte(data))
		assert.True(t, apierrors.IsFormatError(err), "input %s", data)
	}

	assert.Equal(t, before, h.o.Messages())
	assert.Equal(t, before, h.stored(t, "general"))
	assert.Equal(t, restores, h.primary.restores)
}

func TestExportFilename(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, "dland_chat_general_2025-05-01.json", h.o.ExportFilename(history.ExportFormatJSON))
	assert.Contains(t, h.o.ExportMarkdown(), "# Dland chat: general")
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, nil)

	s := models.DefaultSettings()
	s.UserName = "Ada"
	s.Tone = models.ToneCasual
	require.NoError(t, h.o.UpdateSettings(s))
	assert.Equal(t, s, h.o.Settings())
	assert.Contains(t, h.primary.Instruction(), "Address the user as Ada occasionally.")
	assert.Contains(t, h.primary.Instruction(), "casual")

	saved, err := h.hist.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, s, saved)

	h.send(t, "hello", nil)
	resets := h.primary.resets
	s.UserName = "Grace"
	require.NoError(t, h.o.UpdateSettings(s))
	assert.Equal(t, resets, h.primary.resets, "an ongoing conversation keeps its instruction")
	assert.NotContains(t, h.primary.Instruction(), "Grace")

	assert.Error(t, h.o.UpdateSettings(models.Settings{Theme: "neon"}))
	assert.Equal(t, "Grace", h.o.Settings().UserName)
}

func TestSetLocation(t *testing.T) {
	h := newHarness(t, nil)

	h.o.SetLocation("User Location: Lat 1, Lng 2")
	assert.Contains(t, h.primary.Instruction(), "User Location: Lat 1, Lng 2.")

	h.send(t, "hello", nil)
	turns := h.primary.History()
	h.o.SetLocation("User Location: Lat 3, Lng 4")
	assert.NotContains(t, h.primary.Instruction(), "Lat 3", "no restart after the user interacted")
	assert.Equal(t, turns, h.primary.History())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "streaming", PhaseStreaming.String())
	assert.Equal(t, "committed", EventCommitted.String())
}
