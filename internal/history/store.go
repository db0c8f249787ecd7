// Package history persists per-persona conversation logs and user settings.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/store"
)

// Store maps conversation logs and settings onto a key-value store
type Store struct {
	kv     store.Store
	logger *slog.Logger
}

// NewStore creates a history store over kv
func NewStore(kv store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{kv: kv, logger: logger.With("component", "history")}
}

// LoadLog returns the saved log for persona. A missing entry yields an empty
// log. A corrupted entry is logged and also yields an empty log.
// Streaming flags left by an interrupted turn are cleared.
func (s *Store) LoadLog(persona string) ([]models.Message, error) {
	key := models.HistoryKey(persona)
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", persona, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []models.Message{}, nil
	}

	msgs, err := DecodeLog([]byte(raw))
	if err != nil {
		s.logger.Warn("discarding corrupted history", "persona", persona, "error", err)
		return []models.Message{}, nil
	}
	return msgs, nil
}

// SaveLog persists the log for persona
func (s *Store) SaveLog(persona string, msgs []models.Message) error {
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.kv.Set(models.HistoryKey(persona), string(data)); err != nil {
		return fmt.Errorf("failed to save history for %s: %w", persona, err)
	}
	return nil
}

// DeleteLog removes the persisted log for persona
func (s *Store) DeleteLog(persona string) error {
	if err := s.kv.Delete(models.HistoryKey(persona)); err != nil {
		return fmt.Errorf("failed to delete history for %s: %w", persona, err)
	}
	return nil
}

// Personas lists the personas that have a stored log
func (s *Store) Personas() ([]string, error) {
	keys, err := s.kv.Keys(models.HistoryKeyPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, models.HistoryKeyPrefix))
	}
	return names, nil
}

// LoadSettings returns the saved settings, or the defaults when none are saved
// or the saved value is unreadable
func (s *Store) LoadSettings() (models.Settings, error) {
	raw, ok, err := s.kv.Get(models.SettingsKey)
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	if !ok {
		return models.DefaultSettings(), nil
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.Warn("discarding corrupted settings", "error", err)
		return models.DefaultSettings(), nil
	}
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		s.logger.Warn("discarding invalid settings", "error", err)
		return models.DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings validates and persists settings
func (s *Store) SaveSettings(settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.kv.Set(models.SettingsKey, string(data)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
