package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/models"
)

func TestPersonaList(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "persona", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `general\s+General assistant\s+✓\s+✓`, out)
	assert.Contains(t, out, "python")
	assert.Contains(t, out, "linux")
}

func TestPersonaList_InvalidEntry(t *testing.T) {
	env := newTestEnv(t)
	content := `{"personas":[{"name":"my tutor","system_prompt":"Teach."}],"default_persona":"my tutor"}`
	require.NoError(t, os.WriteFile(filepath.Join(env.home, "personas.json"), []byte(content), 0o600))

	out, stderr, err := env.run(t, "", "persona", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "my tutor")
	assert.Contains(t, stderr, `persona "my tutor"`)

	// the session still opens on the fallback default
	out, _, err = env.run(t, "", "history", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No messages for persona 'general'")
}

func TestPersonaShow(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "persona", "show", "python")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: python")
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "System Prompt:")

	_, _, err = env.run(t, "", "persona", "show", "chef")
	assert.Error(t, err)
}

func TestPersonaAdd(t *testing.T) {
	env := newTestEnv(t)
	input := "Cooking helper\nYou are a chef.\nBe brief.\n\nPasta tonight\nKnife skills\n\n"

	out, _, err := env.run(t, input, "persona", "add", "chef")
	require.NoError(t, err)
	assert.Contains(t, out, "Persona 'chef' created.")

	p, err := config.GetPersona("chef")
	require.NoError(t, err)
	assert.Equal(t, "Cooking helper", p.Description)
	assert.Equal(t, "You are a chef.\nBe brief.", p.SystemPrompt)
	assert.Equal(t, []string{"Pasta tonight", "Knife skills"}, p.Suggestions)

	_, _, err = env.run(t, input, "persona", "add", "chef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPersonaAdd_ChatUsesIt(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "Cooking helper\nYou are a chef.\n\n\n", "persona", "add", "chef")
	require.NoError(t, err)

	env.doer.gemini("Boil water.")
	_, _, err = env.run(t, "", "ask", "-p", "chef", "pasta?")
	require.NoError(t, err)

	instruction := env.doer.requests(geminiHost)[0].Get("systemInstruction.parts.0.text").String()
	assert.Contains(t, instruction, "You are a chef.")
}

func TestPersonaDelete(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "Cooking helper\nYou are a chef.\n\n\n", "persona", "add", "chef")
	require.NoError(t, err)
	seedLog(t, env, "chef", "hi", "hello")

	out, _, err := env.run(t, "", "persona", "delete", "chef")
	require.NoError(t, err)
	assert.Contains(t, out, "Persona 'chef' deleted.")

	_, err = config.GetPersona("chef")
	assert.Error(t, err)
	_, ok, err := env.kv.Get(models.HistoryKey("chef"))
	require.NoError(t, err)
	assert.False(t, ok, "the persona's history is removed with it")
}

func TestPersonaDelete_Builtin(t *testing.T) {
	env := newTestEnv(t)
	seedLog(t, env, "python", "hi")

	_, _, err := env.run(t, "", "persona", "delete", "python")
	require.Error(t, err)

	_, ok, _ := env.kv.Get(models.HistoryKey("python"))
	assert.True(t, ok)
}

func TestPersonaDefault(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "persona", "default", "python")
	require.NoError(t, err)
	assert.Contains(t, out, "Default persona set to 'python'.")

	cfg, err := config.LoadPersonas()
	require.NoError(t, err)
	assert.Equal(t, "python", cfg.DefaultPersona)

	_, _, err = env.run(t, "", "persona", "default", "chef")
	assert.Error(t, err)
}
