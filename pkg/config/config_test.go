package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetModelProvider(t *testing.T) {
	tests := []struct {
		model    string
		provider string
		wantErr  bool
	}{
		{"gemini-2.5-flash", ProviderGoogle, false},
		{"gpt-4.1-mini", ProviderOpenAI, false},
		{"claude-sonnet-4-5", ProviderAnthropic, false},
		{"gemini-3-pro", ProviderGoogle, false},
		{"o4-mini", ProviderOpenAI, false},
		{"llama3.1:8b", ProviderOllama, false},
		{"ollama:custom", ProviderOllama, false},
		{"mystery-model", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			provider, err := GetModelProvider(tt.model)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
		})
	}
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.40+1.60, CalculateCost(ModelGPT41Mini, 1_000_000, 1_000_000), 1e-9)
	assert.Zero(t, CalculateCost("unknown", 1000, 1000))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.HistoryWindow)
	assert.Equal(t, 10, cfg.Server.HistoryLimit)
	assert.Equal(t, DefaultPrimaryModel, cfg.Models.Primary)
	assert.Equal(t, DefaultSecondaryModel, cfg.Models.Secondary)
	assert.Equal(t, DefaultPrimaryModel, cfg.Models.Router)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Resilience.CircuitBreaker.Timeout.Std())
	assert.Equal(t, 168*time.Hour, cfg.Capabilities.NewsMaxAge.Std())
	assert.Len(t, cfg.Capabilities.NewsFeeds, 4)
	assert.True(t, cfg.Capabilities.KeywordFallback)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "roma.db", cfg.Persistence.DBPath)
}

func TestLoadConfigJSON(t *testing.T) {
	t.Setenv("TEST_ROMA_DB", "/tmp/history.db")
	path := writeFile(t, "roma.json", `{
		"server": {"port": 9000, "read_timeout": "5s"},
		"models": {"primary": "claude-sonnet-4-5", "secondary": "gpt-4o"},
		"resilience": {"retry": {"max_attempts": 4, "initial_delay": "250ms"}},
		"capabilities": {"keyword_fallback": false},
		"persistence": {"db_path": "${TEST_ROMA_DB}"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Primary)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Synthesis)
	assert.Equal(t, 4, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience.Retry.InitialDelay.Std())
	assert.False(t, cfg.Capabilities.KeywordFallback)
	assert.Equal(t, "/tmp/history.db", cfg.Persistence.DBPath)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "roma.yaml", `
server:
  host: 127.0.0.1
  history_window: 3
capabilities:
  news_max_items: 8
  news_max_age: 48h
  news_feeds:
    decrypt: https://decrypt.co/feed
metrics:
  enabled: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Server.HistoryWindow)
	assert.Equal(t, 8, cfg.Capabilities.NewsMaxItems)
	assert.Equal(t, 48*time.Hour, cfg.Capabilities.NewsMaxAge.Std())
	assert.Equal(t, map[string]string{"decrypt": "https://decrypt.co/feed"}, cfg.Capabilities.NewsFeeds)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROMA_SERVER_PORT", "7001")
	t.Setenv("ROMA_MODELS_SECONDARY", "claude-haiku-4-5")
	t.Setenv("ROMA_RESILIENCE_TIMEOUT", "15s")
	t.Setenv("ROMA_RESILIENCE_RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("ROMA_CAPABILITIES_KEYWORD_FALLBACK", "false")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "claude-haiku-4-5", cfg.Models.Secondary)
	assert.Equal(t, 15*time.Second, cfg.Resilience.Timeout.Std())
	assert.InDelta(t, 1.5, cfg.Resilience.Retry.BackoffFactor, 1e-9)
	assert.False(t, cfg.Capabilities.KeywordFallback)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"window over limit", func(c *Config) { c.Server.HistoryWindow = 20 }},
		{"unknown model", func(c *Config) { c.Models.Planner = "mystery" }},
		{"zero attempts", func(c *Config) { c.Resilience.Retry.MaxAttempts = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	assert.NoError(t, validateConfig(Default()))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "roma.json", `{"server": `))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "roma.json", `{"server": {"read_timeout": "soon"}}`))
	assert.Error(t, err)
}

func TestGetSetConfig(t *testing.T) {
	SetConfig(nil)
	_, err := GetConfig()
	assert.Error(t, err)

	cfg := Default()
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	got, err := GetConfig()
	require.NoError(t, err)
	got.Server.Port = 1
	again, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, again.Server.Port)
}

func TestGetAPIKey(t *testing.T) {
	SetDecryptedSecrets(nil)
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	t.Setenv(EnvOpenAIAPIKey, "env-openai")
	key, err := GetAPIKey(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "env-openai", key)

	SetSecret(EnvOpenAIAPIKey, "file-openai")
	key, err = GetAPIKey(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "file-openai", key)

	t.Setenv(EnvAnthropicAPIKey, "")
	_, err = GetAPIKey(ProviderAnthropic)
	assert.Error(t, err)

	t.Setenv(EnvOllamaHost, "")
	host, err := GetAPIKey(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", host)

	_, err = GetAPIKey("nope")
	assert.Error(t, err)
}
