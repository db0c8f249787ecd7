package config

import (
	"strings"
	"time"

	"github.com/diogo/dland/internal/models"
)

var toneInstructions = map[models.Tone]string{
	models.ToneProfessional: "Your tone is professional, clear, and direct. Use sophisticated language.",
	models.ToneCasual:       "Your tone is casual, friendly, and conversational. Feel free to use simple language.",
	models.ToneEnthusiastic: "Your tone is enthusiastic, energetic, and encouraging. Use exclamation points where appropriate.",
	models.ToneConcise:      "Your tone is extremely concise. Provide only the necessary information with minimal filler.",
}

// ToneInstruction returns the sentence describing tone
func ToneInstruction(tone models.Tone) string {
	if s, ok := toneInstructions[tone]; ok {
		return s
	}
	return toneInstructions[models.ToneProfessional]
}

// BuildInstruction assembles the system instruction for a persona.
// location is a free-form description and may be empty.
func BuildInstruction(persona Persona, settings models.Settings, location string, now time.Time) string {
	parts := []string{persona.SystemPrompt, ToneInstruction(settings.Tone)}

	if name := strings.TrimSpace(settings.UserName); name != "" {
		parts = append(parts, "Address the user as "+name+" occasionally.")
	}
	if location != "" {
		parts = append(parts, location+".")
	}
	parts = append(parts,
		"Current local time: "+now.Format("1/2/2006, 3:04:05 PM")+".",
		"Provide responses using clean Markdown formatting.",
	)

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
