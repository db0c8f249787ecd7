// Package config handles configuration and persona management for dland.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/diogo/dland/internal/models"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	EnableEmoji      bool `toml:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool `toml:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool `toml:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool `toml:"inline_table_links"` // Render links inline in tables
}

// PrimaryConfig configures the stateful text provider
type PrimaryConfig struct {
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
	// Stream selects streamGenerateContent; when false a single
	// generateContent call yields the whole reply as one fragment.
	Stream bool `toml:"stream"`
}

// VisionConfig configures the stateless image provider
type VisionConfig struct {
	APIKey    string `toml:"api_key"`
	Endpoint  string `toml:"endpoint"`
	Model     string `toml:"model"`
	Referer   string `toml:"referer"`
	Title     string `toml:"title"`
	Reasoning bool   `toml:"reasoning"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend string `toml:"backend"` // "file" or "sqlite"
	Path    string `toml:"path"`    // directory (file) or database file (sqlite)
}

// NetworkConfig configures the HTTP transport
type NetworkConfig struct {
	TimeoutSeconds    int `toml:"timeout_seconds"`
	RequestsPerMinute int `toml:"requests_per_minute"` // 0 disables pacing
}

// LocationConfig configures the best-effort location lookup. It sends the
// user's IP address to Endpoint, so it stays off unless enabled in config.toml.
type LocationConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LogConfig configures the log file
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	Path  string `toml:"path"`
}

// Config represents the user configuration
type Config struct {
	DefaultPersona string         `toml:"default_persona"`
	Primary        PrimaryConfig  `toml:"primary"`
	Vision         VisionConfig   `toml:"vision"`
	Store          StoreConfig    `toml:"store"`
	Network        NetworkConfig  `toml:"network"`
	Location       LocationConfig `toml:"location"`
	Log            LogConfig      `toml:"log"`
	Markdown       MarkdownConfig `toml:"markdown"`
}

// Store backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		DefaultPersona: DefaultPersonaName,
		Primary: PrimaryConfig{
			Endpoint: models.EndpointGemini,
			Model:    models.DefaultPrimaryModel,
			Stream:   true,
		},
		Vision: VisionConfig{
			Endpoint:  models.EndpointOpenRouter,
			Model:     models.DefaultVisionModel,
			Referer:   "https://github.com/diogo/dland",
			Title:     "Dland AI",
			Reasoning: true,
		},
		Store: StoreConfig{
			Backend: BackendFile,
		},
		Network: NetworkConfig{
			TimeoutSeconds:    300,
			RequestsPerMinute: 30,
		},
		Location: LocationConfig{
			Enabled:        false,
			Endpoint:       models.EndpointLocation,
			TimeoutSeconds: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
		Markdown: DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path.
// DLAND_HOME overrides the default ~/.dland.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("DLAND_HOME"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".dland"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds API keys and chat history
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads the configuration from path. A missing file yields
// the defaults. Environment overrides are applied last.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg.withDefaults(), nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg.withDefaults(), nil
}

// SaveConfig writes the configuration to the default path
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}
	return SaveConfigTo(cfg, filepath.Join(configDir, "config.toml"))
}

// SaveConfigTo writes the configuration as TOML to path with 0o600 permissions
func SaveConfigTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# dland configuration")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv overlays credentials and paths from the environment
func (c *Config) ApplyEnv() {
	if key := firstEnv("DLAND_PRIMARY_API_KEY", "GEMINI_API_KEY"); key != "" {
		c.Primary.APIKey = key
	}
	if key := firstEnv("DLAND_VISION_API_KEY", "OPENROUTER_API_KEY"); key != "" {
		c.Vision.APIKey = key
	}
	if rpm := os.Getenv("DLAND_REQUESTS_PER_MINUTE"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil && n >= 0 {
			c.Network.RequestsPerMinute = n
		}
	}
}

// withDefaults fills zero values left by a partial config file
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultPersona == "" {
		c.DefaultPersona = def.DefaultPersona
	}
	if c.Primary.Endpoint == "" {
		c.Primary.Endpoint = def.Primary.Endpoint
	}
	if c.Primary.Model == "" {
		c.Primary.Model = def.Primary.Model
	}
	if c.Vision.Endpoint == "" {
		c.Vision.Endpoint = def.Vision.Endpoint
	}
	if c.Vision.Model == "" {
		c.Vision.Model = def.Vision.Model
	}
	if c.Vision.Title == "" {
		c.Vision.Title = def.Vision.Title
	}
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = def.Network.TimeoutSeconds
	}
	if c.Location.Endpoint == "" {
		c.Location.Endpoint = def.Location.Endpoint
	}
	if c.Location.TimeoutSeconds <= 0 {
		c.Location.TimeoutSeconds = def.Location.TimeoutSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	return c
}

// Validate checks values that cannot be defaulted
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid store backend %q (valid: %s, %s)", c.Store.Backend, BackendFile, BackendSQLite)
	}
	if c.Network.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// Timeout returns the HTTP timeout
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// LocationTimeout returns the location lookup timeout
func (c Config) LocationTimeout() time.Duration {
	return time.Duration(c.Location.TimeoutSeconds) * time.Second
}

// StorePath resolves the store location, defaulting inside the config dir
func (c Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if c.Store.Backend == BackendSQLite {
		return filepath.Join(dir, "dland.db"), nil
	}
	return filepath.Join(dir, "store"), nil
}

// LogPath resolves the log file location
func (c Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dland.log"), nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
