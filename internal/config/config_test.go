package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("PERSONACHAT_GEMINI_API_KEY", "")
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logger.Level)
	assert.Equal(t, DefaultTextModel, cfg.Gemini.TextModel)
	assert.Equal(t, DefaultImageModel, cfg.Gemini.ImageModel)
	assert.Equal(t, DefaultOrchestratorMode, cfg.Orchestrator.Mode)
	assert.Equal(t, DefaultVideoPollInterval, cfg.Media.Video.PollInterval)
	assert.Equal(t, DefaultVideoMaxPolls, cfg.Media.Video.MaxPolls)
	assert.Equal(t, 0, cfg.Gemini.MaxRetries)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.Contains(t, cfg.Scheduler.Tasks, "media_cleanup")
}

func TestLoadConfigFromFile(t *testing.T) {
	clearKeyEnv(t)

	path := writeConfig(t, `
logger:
  level: debug
  json: true
gemini:
  api_key: file-key
  text_model: gemini-2.5-pro
orchestrator:
  mode: multi
  max_responders: 3
media:
  video:
    poll_interval: 5s
    max_polls: 12
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, "file-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.TextModel)
	assert.Equal(t, "multi", cfg.Orchestrator.Mode)
	assert.Equal(t, 3, cfg.Orchestrator.MaxResponders)
	assert.Equal(t, 5*time.Second, cfg.Media.Video.PollInterval)
	assert.Equal(t, 12, cfg.Media.Video.MaxPolls)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("PERSONACHAT_HTTP_ADDR", ":9999")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown text model", body: "gemini:\n  text_model: gpt-4o\n"},
		{name: "unknown mode", body: "orchestrator:\n  mode: round_robin\n"},
		{name: "too many responders", body: "orchestrator:\n  max_responders: 9\n"},
		{name: "telegram without token", body: "telegram:\n  enabled: true\n  admin_id: 42\n"},
		{name: "bad resolution", body: "media:\n  video:\n    resolution: 4k\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestModelLists(t *testing.T) {
	assert.True(t, IsTextModel("gemini-flash-latest"))
	assert.False(t, IsTextModel("imagen-4.0-generate-001"))
	assert.True(t, IsImageModel("imagen-4.0-generate-001"))
	assert.False(t, IsImageModel(""))
}
