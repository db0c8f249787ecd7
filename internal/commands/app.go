package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/diogo/dland/internal/config"
	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/history"
	"github.com/diogo/dland/internal/locate"
	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/provider"
	"github.com/diogo/dland/internal/session"
	"github.com/diogo/dland/internal/store"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	config    string
	verbose   bool
	persona   string
	ephemeral bool
}

// storage is what the offline commands need: config, logs and history
type storage struct {
	Config   config.Config
	Logger   *slog.Logger
	History  *history.Store
	Personas *config.PersonaConfig
	closers  []io.Closer
}

// Close releases the store and the log file
func (s *storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// persona resolves the persona to open: the flag, then a default chosen
// with "dland persona default", then default_persona from the config file.
func (s *storage) persona(flag string) (string, error) {
	name := flag
	if name == "" && s.Personas.DefaultPersona != config.DefaultPersonaName {
		name = s.Personas.DefaultPersona
	}
	if name == "" {
		name = s.Config.DefaultPersona
	}
	if name == "" {
		name = config.DefaultPersonaName
	}
	if _, ok := s.Personas.Find(name); !ok {
		return "", fmt.Errorf("persona '%s' not found (available: %v)", name, s.Personas.Names())
	}
	return name, nil
}

func loadConfig(g *globalFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if g.config != "" {
		cfg, err = config.LoadConfigFrom(g.config)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return cfg, err
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// openStorage loads configuration, opens the log file and the store
func openStorage(g *globalFlags, deps *Dependencies) (*storage, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s := &storage{Config: cfg}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(logPath, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	s.Logger = logger
	s.closers = append(s.closers, logCloser)

	var kv store.Store
	switch {
	case deps.Store != nil:
		kv = nopCloser{deps.Store}
	case g.ephemeral:
		kv = store.NewMemory()
	default:
		path, err := cfg.StorePath()
		if err != nil {
			s.Close()
			return nil, err
		}
		kv, err = store.Open(cfg.Store.Backend, path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	}
	s.closers = append(s.closers, kv)
	s.History = history.NewStore(kv, logger)

	s.Personas, err = config.LoadPersonas()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}
	for _, problem := range s.Personas.Skipped {
		logger.Warn("ignoring invalid persona", "error", problem)
	}

	logger.Debug("storage opened", "backend", cfg.Store.Backend, "ephemeral", g.ephemeral)
	return s, nil
}

// app is a storage plus a live session
type app struct {
	*storage
	Session *session.Orchestrator
	doer    provider.Doer
}

// newApp wires providers and the orchestrator for persona (empty resolves
// the default). Missing API keys are logged, not fatal: the turn that needs
// one fails with an AuthError.
func newApp(g *globalFlags, deps *Dependencies, persona string) (*app, error) {
	s, err := openStorage(g, deps)
	if err != nil {
		return nil, err
	}
	a := &app{storage: s, doer: deps.Doer}

	name, err := s.persona(persona)
	if err != nil {
		s.Close()
		return nil, err
	}

	if a.doer == nil {
		t, err := provider.NewTransport(s.Config.Timeout(), s.Config.Network.RequestsPerMinute)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		a.doer = t
	}

	opts := []provider.Option{provider.WithDoer(a.doer), provider.WithLogger(s.Logger)}
	primary, err := provider.NewGemini(s.Config.Primary, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	vision, err := provider.NewOpenRouter(s.Config.Vision, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	if s.Config.Primary.APIKey == "" {
		s.Logger.Warn("primary provider has no API key", "error", apierrors.NewMissingKeyError("gemini"))
	}
	if s.Config.Vision.APIKey == "" {
		s.Logger.Warn("vision provider has no API key", "error", apierrors.NewMissingKeyError("openrouter"))
	}

	settings, err := s.History.LoadSettings()
	if err != nil {
		s.Close()
		return nil, err
	}

	a.Session, err = session.New(session.Options{
		History:  s.History,
		Primary:  primary,
		Vision:   vision,
		Personas: s.Personas.Personas,
		Persona:  name,
		Settings: settings,
		Logger:   s.Logger,
		Now:      deps.Now,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return a, nil
}

// lookupLocation resolves the user's location in the background and hands
// it to the session. It never blocks the caller.
func (a *app) lookupLocation(ctx context.Context) {
	if !a.Config.Location.Enabled {
		return
	}
	l := locate.New(a.doer, a.Config.Location.Endpoint, a.Config.LocationTimeout())
	go func() {
		loc, err := l.Lookup(ctx)
		if err != nil {
			a.Logger.Debug("location unavailable", "error", err)
			return
		}
		a.Session.SetLocation(loc.Describe())
	}()
}
