// Package session coordinates a chat turn between the conversation log,
// its persisted copy and the two providers.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/provider"
)

var (
	// ErrBusy rejects operations while a turn is in flight
	ErrBusy = errors.New("a response is still being generated")
	// ErrEmptyTurn rejects a turn with neither text nor attachment
	ErrEmptyTurn = errors.New("message is empty")
)

// FailureNotice is appended as a system message when a turn fails
const FailureNotice = "We encountered an issue processing your request. Please try again."

// Phase is the position of the orchestrator in the per-turn state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUserMessageAppended
	PhaseProviderSelected
	PhaseStreaming
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserMessageAppended:
		return "user-message-appended"
	case PhaseProviderSelected:
		return "provider-selected"
	case PhaseStreaming:
		return "streaming"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State tracks which provider served the last turn and whether the primary
// provider's own history still mirrors the log.
type State struct {
	Route         models.Route
	PrimarySynced bool
}

// HistoryStore persists logs and settings
type HistoryStore interface {
	LoadLog(persona string) ([]models.Message, error)
	SaveLog(persona string, msgs []models.Message) error
	DeleteLog(persona string) error
	SaveSettings(settings models.Settings) error
}

// Options configures an Orchestrator
type Options struct {
	History  HistoryStore
	Primary  provider.PrimaryProvider
	Vision   provider.Provider
	Personas []config.Persona
	// Persona is the persona opened at start; empty means the first one
	Persona  string
	Settings models.Settings
	Logger   *slog.Logger
	// Now and NewID are replaceable for tests
	Now   func() time.Time
	NewID func() string
}

// Orchestrator owns the conversation log of the active persona. Only one
// turn may be in flight; mutating operations return ErrBusy meanwhile.
type Orchestrator struct {
	history HistoryStore
	primary provider.PrimaryProvider
	vision  provider.Provider
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.Mutex
	personas   []config.Persona
	persona    string
	settings   models.Settings
	location   string
	messages   []models.Message
	phase      Phase
	state      State
	interacted bool
	observers  []Observer
}

// New loads the log of the starting persona and starts the primary provider with it
func New(opts Options) (*Orchestrator, error) {
	if opts.History == nil || opts.Primary == nil || opts.Vision == nil {
		return nil, errors.New("session: history, primary and vision are required")
	}
	if len(opts.Personas) == 0 {
		opts.Personas = config.DefaultPersonas()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = models.NewID
	}

	settings := opts.Settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		history:  opts.History,
		primary:  opts.Primary,
		vision:   opts.Vision,
		logger:   opts.Logger.With("component", "session"),
		now:      opts.Now,
		newID:    opts.NewID,
		personas: append([]config.Persona(nil), opts.Personas...),
		settings: settings,
		state:    State{Route: models.RoutePrimary, PrimarySynced: true},
	}

	name := opts.Persona
	if name == "" {
		name = o.personas[0].Name
	}
	if _, ok := o.findPersonaLocked(name); !ok {
		return nil, fmt.Errorf("unknown persona %q", name)
	}
	o.persona = name

	msgs, err := o.history.LoadLog(name)
	if err != nil {
		return nil, err
	}
	o.messages = msgs
	o.primary.Start(o.instructionLocked(), msgs)

	return o, nil
}

func (o *Orchestrator) findPersonaLocked(name string) (config.Persona, bool) {
	for _, p := range o.personas {
		if p.Name == name {
			return p, true
		}
	}
	return config.Persona{}, false
}

// instructionLocked builds the system instruction for the active persona
func (o *Orchestrator) instructionLocked() string {
	p, _ := o.findPersonaLocked(o.persona)
	return config.BuildInstruction(p, o.settings, o.location, o.now())
}

// persistLocked saves the log. Failures are logged; the in-memory log stays authoritative.
func (o *Orchestrator) persistLocked() {
	if err := o.history.SaveLog(o.persona, o.messages); err != nil {
		o.logger.Error("failed to persist history", "persona", o.persona, "error", err)
	}
}

// Messages returns a copy of the conversation log
func (o *Orchestrator) Messages() []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return models.CloneMessages(o.messages)
}

// Persona returns the active persona name
func (o *Orchestrator) Persona() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.persona
}

// ActivePersona returns the active persona definition
func (o *Orchestrator) ActivePersona() config.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, _ := o.findPersonaLocked(o.persona)
	return p
}

// Personas returns the known personas
func (o *Orchestrator) Personas() []config.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]config.Persona(nil), o.personas...)
}

// Settings returns the current settings
func (o *Orchestrator) Settings() models.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// State returns the provider routing state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Phase returns the current turn phase
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Busy reports whether a turn is in flight
func (o *Orchestrator) Busy() bool {
	return o.Phase() != PhaseIdle
}

// Instruction returns the system instruction currently in effect
func (o *Orchestrator) Instruction() string {
	return o.primary.Instruction()
}
