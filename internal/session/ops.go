package session

import (
	"fmt"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/history"
	"github.com/diogo/dland/internal/models"
)

// SwitchPersona replaces the log with the saved log of name and restarts the
// primary provider with that persona's instruction and history.
func (o *Orchestrator) SwitchPersona(name string) error {
	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	if _, ok := o.findPersonaLocked(name); !ok {
		o.mu.Unlock()
		return fmt.Errorf("unknown persona %q", name)
	}

	msgs, err := o.history.LoadLog(name)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	o.persona = name
	o.messages = msgs
	instruction := o.instructionLocked()
	o.primary.Reset(instruction)
	if len(msgs) > 0 {
		o.primary.Restore(instruction, msgs)
	}
	o.state = State{Route: models.RoutePrimary, PrimarySynced: true}
	ev := o.eventLocked(EventReset, models.Message{})
	o.mu.Unlock()

	o.logger.Info("persona switched", "persona", name, "messages", len(msgs))
	o.publish(ev)
	return nil
}

// ResetConversation clears the log and deletes its saved copy
func (o *Orchestrator) ResetConversation() error {
	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return ErrBusy
	}

	o.messages = []models.Message{}
	if err := o.history.DeleteLog(o.persona); err != nil {
		o.logger.Error("failed to delete history", "persona", o.persona, "error", err)
	}
	o.primary.Reset(o.instructionLocked())
	o.state = State{Route: models.RoutePrimary, PrimarySynced: true}
	ev := o.eventLocked(EventReset, models.Message{})
	o.mu.Unlock()

	o.publish(ev)
	return nil
}

// ExportLog serializes the log as an indented JSON array
func (o *Orchestrator) ExportLog() ([]byte, error) {
	return history.EncodeLog(o.Messages())
}

// ExportMarkdown renders the log as a Markdown document
func (o *Orchestrator) ExportMarkdown() string {
	o.mu.Lock()
	persona, msgs := o.persona, models.CloneMessages(o.messages)
	o.mu.Unlock()
	return history.ExportMarkdown(persona, msgs, o.now())
}

// ExportFilename suggests a file name for an export of the active persona
func (o *Orchestrator) ExportFilename(format history.ExportFormat) string {
	return history.ExportFilename(o.Persona(), format, o.now())
}

// ImportLog replaces the log with a previously exported one. Input that is
// not a JSON array of messages is rejected with a FormatError and the log
// is left unchanged.
func (o *Orchestrator) ImportLog(data []byte) error {
	msgs, err := history.DecodeLog(data)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.messages = msgs
	o.persistLocked()
	o.primary.Restore(o.instructionLocked(), msgs)
	o.state = State{Route: models.RoutePrimary, PrimarySynced: true}
	ev := o.eventLocked(EventReset, models.Message{})
	o.mu.Unlock()

	o.logger.Info("history imported", "persona", ev.Persona, "messages", len(msgs))
	o.publish(ev)
	return nil
}

// UpdateSettings validates and saves settings. A new instruction is applied
// right away only when the conversation is empty.
func (o *Orchestrator) UpdateSettings(settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := o.history.SaveSettings(settings); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = settings
	if len(o.messages) == 0 {
		o.primary.Reset(o.instructionLocked())
	}
	return nil
}

// SetLocation records location context for future instructions. Until the
// user sends a turn the primary provider is restarted with it.
func (o *Orchestrator) SetLocation(desc string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.location = desc
	if !o.interacted && o.phase == PhaseIdle {
		o.primary.Start(o.instructionLocked(), o.messages)
	}
}

// SetPersonas replaces the persona definitions, e.g. after the personas
// file changed. The active persona keeps its old definition if it was removed.
func (o *Orchestrator) SetPersonas(personas []config.Persona) {
	o.mu.Lock()
	defer o.mu.Unlock()

	current, _ := o.findPersonaLocked(o.persona)
	next := append([]config.Persona(nil), personas...)
	found := false
	for _, p := range next {
		if p.Name == o.persona {
			found = true
			break
		}
	}
	if !found {
		next = append(next, current)
	}
	o.personas = next

	if len(o.messages) == 0 && o.phase == PhaseIdle {
		o.primary.Reset(o.instructionLocked())
	}
}
