package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemory()
	return NewStore(kv, nil), kv
}

func TestLoadLog_Missing(t *testing.T) {
	s, _ := newTestStore(t)

	msgs, err := s.LoadLog("general")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestSaveLoadLog(t *testing.T) {
	s, kv := newTestStore(t)

	msgs := []models.Message{
		{ID: "1", Role: models.RoleUser, Text: "hi", Timestamp: 1},
		{ID: "2", Role: models.RoleModel, Text: "hello", Timestamp: 2, ExecutionTime: 300},
	}
	require.NoError(t, s.SaveLog("python", msgs))

	_, ok, _ := kv.Get("dland_chat_history_python")
	assert.True(t, ok, "log is stored under the persona key")

	loaded, err := s.LoadLog("python")
	require.NoError(t, err)
	assert.Equal(t, msgs, loaded)

	other, err := s.LoadLog("linux")
	require.NoError(t, err)
	assert.Empty(t, other, "logs are isolated per persona")
}

func TestLoadLog_Corrupted(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.Set("dland_chat_history_general", "{not json"))

	msgs, err := s.LoadLog("general")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoadLog_ClearsStreaming(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.Set("dland_chat_history_general",
		`[{"id":"1","role":"model","text":"part","timestamp":1,"isStreaming":true}]`))

	msgs, err := s.LoadLog("general")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsStreaming)
	assert.Equal(t, "part", msgs[0].Text)
}

func TestDeleteLogAndPersonas(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.SaveLog("general", nil))
	require.NoError(t, s.SaveLog("linux", []models.Message{{ID: "1", Role: models.RoleUser, Text: "ls"}}))

	names, err := s.Personas()
	require.NoError(t, err)
	assert.Equal(t, []string{"general", "linux"}, names)

	require.NoError(t, s.DeleteLog("linux"))
	names, err = s.Personas()
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, names)
}

func TestSettings(t *testing.T) {
	s, kv := newTestStore(t)

	got, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)

	want := models.Settings{Theme: models.ThemeDark, AccentColor: models.AccentRose, UserName: "Ada", Tone: models.ToneCasual}
	require.NoError(t, s.SaveSettings(want))

	got, err = s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, s.SaveSettings(models.Settings{Theme: "neon"}))

	require.NoError(t, kv.Set("dland_settings", `{"theme":"neon","accentColor":"stone","tone":"casual"}`))
	got, err = s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got, "invalid stored settings fall back to defaults")
}
