package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.home, "config.toml")+"\n", out)

	custom := filepath.Join(t.TempDir(), "other.toml")
	out, _, err = env.run(t, "", "config", "path", "--config", custom)
	require.NoError(t, err)
	assert.Equal(t, custom+"\n", out)
}

func TestConfigShow_MasksKeys(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-secret-1234")

	out, _, err := env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "gemini-secret-1234")
	assert.Contains(t, out, "****1234")
	assert.Contains(t, out, "[primary]")
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "dland", "config.toml")

	out, _, err := env.run(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, _, err = env.run(t, "", "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = env.run(t, "", "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "****wxyz", maskKey("abcdefghijklmnopqrstuvwxyz"))
}
