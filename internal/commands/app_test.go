package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/store"
)

func TestStoragePersonaResolution(t *testing.T) {
	s := &storage{
		Config:   config.DefaultConfig(),
		Personas: &config.PersonaConfig{Personas: config.DefaultPersonas()},
	}

	name, err := s.persona("")
	require.NoError(t, err)
	assert.Equal(t, "general", name)

	s.Config.DefaultPersona = "linux"
	name, _ = s.persona("")
	assert.Equal(t, "linux", name, "config default")

	s.Personas.DefaultPersona = "python"
	name, _ = s.persona("")
	assert.Equal(t, "python", name, "personas file wins over config")

	name, _ = s.persona("general")
	assert.Equal(t, "general", name, "flag wins")

	_, err = s.persona("chef")
	assert.Error(t, err)
}

func TestOpenStorage_FileBackend(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Store = nil

	s, err := openStorage(&globalFlags{}, env.deps)
	require.NoError(t, err)
	require.NoError(t, s.History.SaveLog("general", nil))
	require.NoError(t, s.Close())

	kv, err := store.Open(config.BackendFile, filepath.Join(env.home, "store"))
	require.NoError(t, err)
	defer kv.Close()
	keys, err := kv.Keys("")
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
}

func TestOpenStorage_Ephemeral(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Store = nil

	env.doer.gemini("gone soon")
	_, _, err := env.run(t, "", "ask", "--ephemeral", "hi")
	require.NoError(t, err)

	out, _, err := env.run(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations found.")
}

func TestOpenStorage_MissingConfigFile(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "", "history", "list", "--config", filepath.Join(env.home, "missing.toml"))
	require.NoError(t, err, "a missing config file means defaults")

	_, _, err = env.run(t, "", "history", "list", "--verbose")
	assert.NoError(t, err)
}
