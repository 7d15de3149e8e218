package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvModel, "")
}

func writeConfig(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadProviderConfigJSONDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.json", `{"api_key":"sk-file"}`)

	cfg, err := LoadProviderConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.APIBaseURL)
	assert.Equal(t, DefaultModel, cfg.DefaultModel)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, 10*time.Minute, cfg.Timeout())
	assert.Equal(t, 3, cfg.RetryPolicy().MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryPolicy().Delay)
}

func TestLoadProviderConfigYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
api_base_url: http://localhost:8080/v1
api_key: sk-yaml
default_model: deepseek-chat
temperature: 0.4
retry:
  max_attempts: 5
  delay_ms: 250
model_aliases:
  r1: deepseek-reasoner
`)

	cfg, err := LoadProviderConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v1", cfg.APIBaseURL)
	assert.Equal(t, "deepseek-chat", cfg.DefaultModel)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, *cfg.Temperature, 1e-9)
	assert.Equal(t, 5, cfg.RetryPolicy().MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryPolicy().Delay)
	assert.Equal(t, "deepseek-reasoner", ResolveModel(cfg, "r1", ""))
}

func TestLoadProviderConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.json", `{"api_key":"sk-file","default_model":"deepseek-chat"}`)
	t.Setenv(EnvAPIKey, "sk-env")
	t.Setenv(EnvModel, "deepseek-coder")

	cfg, err := LoadProviderConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "deepseek-coder", cfg.DefaultModel)
}

func TestLoadProviderConfigMissing(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := LoadProviderConfig(path)
	assert.ErrorIs(t, err, ErrProviderConfigMissing)

	t.Setenv(EnvAPIKey, "sk-env")
	cfg, err := LoadProviderConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
}

func TestLoadProviderConfigInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"base url":    `{"api_base_url":"ftp://example.com"}`,
		"temperature": `{"temperature":3}`,
		"top_p":       `{"top_p":-0.1}`,
		"retry":       `{"retry":{"max_attempts":-1}}`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProviderConfig(writeConfig(t, "config.json", contents))
			assert.ErrorIs(t, err, ErrProviderConfigInvalid)
		})
	}
}

func TestLoadProviderConfigKeyLeftToClient(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadProviderConfig(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)

	assert.Empty(t, cfg.APIKey)
	assert.Error(t, cfg.RequestConfig("").Validate())
}

func TestResolveModelAliases(t *testing.T) {
	cfg := &ProviderConfig{
		DefaultModel: "base-model",
		ModelAliases: map[string]string{
			"r1": "deepseek-reasoner",
		},
	}

	assert.Equal(t, "deepseek-reasoner", ResolveModel(cfg, "", "r1"))
	assert.Equal(t, "custom", ResolveModel(cfg, "custom", "r1"))
	assert.Equal(t, "base-model", ResolveModel(cfg, "", ""))
	assert.True(t, IsPreset("deepseek-chat"))
	assert.False(t, IsPreset("gpt-4"))
}

func TestRequestConfigSnapshot(t *testing.T) {
	temperature := 0.7
	cfg := &ProviderConfig{APIKey: "k", APIBaseURL: DefaultBaseURL, DefaultModel: "m", MaxTokens: 10, Temperature: &temperature}

	snapshot := cfg.RequestConfig("")
	assert.Equal(t, "m", snapshot.Model)
	assert.Equal(t, 10, snapshot.MaxTokens)
	require.NotNil(t, snapshot.Temperature)
	assert.Equal(t, "other", cfg.RequestConfig("other").Model)
}
