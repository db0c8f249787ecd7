package session

import "github.com/diogo/dland/internal/models"

// EventKind identifies a log mutation
type EventKind int

const (
	// EventAppended: a message was added
	EventAppended EventKind = iota
	// EventUpdated: the streaming reply grew
	EventUpdated
	// EventCommitted: a turn finished, successfully or not
	EventCommitted
	// EventReset: the whole log was replaced
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventUpdated:
		return "updated"
	case EventCommitted:
		return "committed"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event describes a change to the conversation log
type Event struct {
	Kind    EventKind
	Persona string
	// Message is the affected message; zero for EventReset
	Message models.Message
	// Messages is a snapshot of the log after the change
	Messages []models.Message
}

// Observer receives events on the goroutine that made the change, outside
// the orchestrator lock and in mutation order.
type Observer func(Event)

// Subscribe registers an observer
func (o *Orchestrator) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

func (o *Orchestrator) eventLocked(kind EventKind, msg models.Message) Event {
	return Event{
		Kind:     kind,
		Persona:  o.persona,
		Message:  msg,
		Messages: models.CloneMessages(o.messages),
	}
}

// publish must be called without holding o.mu
func (o *Orchestrator) publish(events ...Event) {
	o.mu.Lock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()

	for _, ev := range events {
		for _, obs := range observers {
			obs(ev)
		}
	}
}
