package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Built-in persona names
const (
	PersonaGeneral = "general"
	PersonaPython  = "python"
	PersonaLinux   = "linux"

	DefaultPersonaName = PersonaGeneral
)

// Persona is a named conversation mode with its own system prompt and history
type Persona struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	SystemPrompt string   `json:"system_prompt"`
	Subtitle     string   `json:"subtitle,omitempty"`    // shown on the welcome screen
	Suggestions  []string `json:"suggestions,omitempty"` // quick prompts on the welcome screen
}

// PersonaConfig stores all personas
type PersonaConfig struct {
	Personas       []Persona `json:"personas"`
	DefaultPersona string    `json:"default_persona,omitempty"`

	// Skipped holds one error per file entry that failed ValidatePersona.
	// Those entries are not usable but are written back by SavePersonas.
	Skipped []error `json:"-"`
	invalid []Persona
}

// DefaultPersonas returns the built-in personas
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:         PersonaGeneral,
			Description:  "General assistant",
			SystemPrompt: "You are Dland, an AI assistant.",
			Subtitle:     "How can I assist you with your tasks today?",
			Suggestions: []string{
				"Analyze this business strategy",
				"Refactor this Python function",
				"Draft a professional email",
				"Explain key macroeconomic trends",
			},
		},
		{
			Name:        PersonaPython,
			Description: "Python tutor",
			SystemPrompt: "You are an expert Python tutor named Dland. You explain concepts clearly, " +
				"provide idiomatic Python code examples (PEP 8 compliant), and help the user learn best practices. " +
				"When providing code, explain the 'why' behind it.",
			Subtitle: "Ready to write some code? Ask me anything about Python.",
			Suggestions: []string{
				"Explain list comprehensions",
				"How do decorators work?",
				"Create a FastAPI starter",
				"Debug this script",
			},
		},
		{
			Name:        PersonaLinux,
			Description: "Linux instructor",
			SystemPrompt: "You are an expert Linux System Administrator instructor named Dland. " +
				"You teach command line usage, shell scripting (bash), and system architecture with a focus on " +
				"safety, security, and clarity. Always warn about destructive commands.",
			Subtitle: "Manage your systems. Ask me about Linux commands.",
			Suggestions: []string{
				"Explain file permissions",
				"How to use grep and sed?",
				"Systemd service configuration",
				"Check disk usage",
			},
		},
	}
}

// IsBuiltinPersona reports whether name is one of the built-in personas
func IsBuiltinPersona(name string) bool {
	for _, p := range DefaultPersonas() {
		if p.Name == name {
			return true
		}
	}
	return false
}

// personasFile is the name of the personas file inside the config dir
const personasFile = "personas.json"

// GetPersonasPath returns the path to the personas file
func GetPersonasPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, personasFile), nil
}

// LoadPersonas reads the personas file from the config dir
func LoadPersonas() (*PersonaConfig, error) {
	path, err := GetPersonasPath()
	if err != nil {
		return nil, err
	}
	return LoadPersonasFrom(path)
}

// LoadPersonasFrom reads personas from path. Entries override built-ins of
// the same name; a missing file yields the built-ins.
func LoadPersonasFrom(path string) (*PersonaConfig, error) {
	cfg := &PersonaConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read personas: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse personas: %w", err)
		}
	}

	valid := cfg.Personas[:0]
	for _, p := range cfg.Personas {
		if err := ValidatePersona(p); err != nil {
			cfg.Skipped = append(cfg.Skipped, fmt.Errorf("persona %q in %s skipped: %w", p.Name, path, err))
			cfg.invalid = append(cfg.invalid, p)
			continue
		}
		valid = append(valid, p)
	}

	cfg.Personas = overlay(DefaultPersonas(), valid)
	if cfg.DefaultPersona == "" || cfg.index(cfg.DefaultPersona) < 0 {
		cfg.DefaultPersona = DefaultPersonaName
	}
	return cfg, nil
}

// overlay replaces built-ins by name and appends the rest in file order
func overlay(builtins, custom []Persona) []Persona {
	out := append([]Persona(nil), builtins...)
	at := make(map[string]int, len(out))
	for i, p := range out {
		at[p.Name] = i
	}
	for _, p := range custom {
		if i, ok := at[p.Name]; ok {
			out[i] = p
			continue
		}
		at[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// SavePersonas writes the personas file (0o600)
func SavePersonas(cfg *PersonaConfig) error {
	dir, err := EnsureConfigDir()
	if err != nil {
		return err
	}
	out := *cfg
	out.Personas = append(append([]Persona(nil), cfg.Personas...), cfg.invalid...)
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode personas: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, personasFile), data, 0o600)
}

// Find returns a copy of the persona called name
func (c *PersonaConfig) Find(name string) (*Persona, bool) {
	if i := c.index(name); i >= 0 {
		p := c.Personas[i]
		return &p, true
	}
	return nil, false
}

func (c *PersonaConfig) index(name string) int {
	for i := range c.Personas {
		if c.Personas[i].Name == name {
			return i
		}
	}
	return -1
}

// Names returns the persona names in display order
func (c *PersonaConfig) Names() []string {
	names := make([]string, len(c.Personas))
	for i, p := range c.Personas {
		names[i] = p.Name
	}
	return names
}

// Add appends a validated persona with a new name
func (c *PersonaConfig) Add(p Persona) error {
	if err := ValidatePersona(p); err != nil {
		return err
	}
	if c.index(p.Name) >= 0 {
		return fmt.Errorf("persona '%s' already exists", p.Name)
	}
	c.Personas = append(c.Personas, p)
	return nil
}

// Remove deletes a custom persona. Removing the default persona makes
// general the default again.
func (c *PersonaConfig) Remove(name string) error {
	if IsBuiltinPersona(name) {
		return fmt.Errorf("cannot delete the built-in persona '%s'", name)
	}
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("persona '%s' not found", name)
	}
	c.Personas = append(c.Personas[:i], c.Personas[i+1:]...)
	if c.DefaultPersona == name {
		c.DefaultPersona = DefaultPersonaName
	}
	return nil
}

// SetDefault selects the persona opened at start-up
func (c *PersonaConfig) SetDefault(name string) error {
	if c.index(name) < 0 {
		return fmt.Errorf("persona '%s' not found", name)
	}
	c.DefaultPersona = name
	return nil
}

// updatePersonas loads the personas file, applies fn and saves the result
// when fn succeeds
func updatePersonas(fn func(*PersonaConfig) error) error {
	cfg, err := LoadPersonas()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return SavePersonas(cfg)
}

// GetPersona returns a persona by name
func GetPersona(name string) (*Persona, error) {
	cfg, err := LoadPersonas()
	if err != nil {
		return nil, err
	}
	if p, ok := cfg.Find(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("persona '%s' not found", name)
}

// AddPersona saves a new persona
func AddPersona(p Persona) error {
	return updatePersonas(func(c *PersonaConfig) error { return c.Add(p) })
}

// DeletePersona removes a custom persona
func DeletePersona(name string) error {
	return updatePersonas(func(c *PersonaConfig) error { return c.Remove(name) })
}

// SetDefaultPersona saves the persona opened at start-up
func SetDefaultPersona(name string) error {
	return updatePersonas(func(c *PersonaConfig) error { return c.SetDefault(name) })
}

// Persona field limits
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 200
	MaxPromptLength      = 32 * 1024
	MaxSuggestions       = 4
)

// ValidatePersona checks names and field sizes. Names end up in store keys,
// so they are limited to letters, digits, '_' and '-'.
func ValidatePersona(p Persona) error {
	var problems []string
	add := func(field, format string, args ...any) {
		problems = append(problems, field+": "+fmt.Sprintf(format, args...))
	}

	switch {
	case p.Name == "":
		add("name", "is required")
	case len(p.Name) > MaxNameLength:
		add("name", "longer than %d characters", MaxNameLength)
	case strings.IndexFunc(p.Name, func(r rune) bool { return !isNameRune(r) }) >= 0:
		add("name", "may only contain letters, digits, '_' and '-'")
	}
	if len(p.Description) > MaxDescriptionLength {
		add("description", "longer than %d characters", MaxDescriptionLength)
	}
	if len(p.SystemPrompt) > MaxPromptLength {
		add("system_prompt", "longer than %d bytes", MaxPromptLength)
	}
	if len(p.Suggestions) > MaxSuggestions {
		add("suggestions", "more than %d entries", MaxSuggestions)
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid persona: %s", strings.Join(problems, "; "))
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}
