package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

const (
	// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"
	// DefaultModel answers with a reasoning trace.
	DefaultModel = "deepseek-reasoner"
	// DefaultMaxTokens bounds a single answer.
	DefaultMaxTokens = 8192
	// DefaultTimeoutMS bounds a whole request, streaming included.
	DefaultTimeoutMS = 600000
)

// DefaultSystemPrompt asks the model to separate thinking from the answer.
const DefaultSystemPrompt = `You are a careful reasoning assistant.
Think through the problem step by step inside <think></think> tags, then give a clear, direct answer after the closing tag.`

// Environment variables that override the file.
const (
	EnvAPIKey  = "REASONCHAT_API_KEY"
	EnvBaseURL = "REASONCHAT_BASE_URL"
	EnvModel   = "REASONCHAT_MODEL"
)

// Preset is a named model with a short description.
type Preset struct {
	Name        string
	Description string
}

// Presets lists the models offered by default.
var Presets = []Preset{
	{Name: "deepseek-chat", Description: "general chat, no separate reasoning trace"},
	{Name: "deepseek-reasoner", Description: "reasoning model, streams reasoning_content"},
	{Name: "deepseek-coder", Description: "code-focused chat"},
}

// ProviderConfig defines how reasonchat connects to an OpenAI-compatible gateway.
type ProviderConfig struct {
	// APIBaseURL is the base URL for OpenAI-compatible chat completions.
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`
	// APIKey is the bearer token used for Authorization.
	APIKey string `json:"api_key" yaml:"api_key"`
	// DefaultModel is used when neither a flag nor a preset picks one.
	DefaultModel string `json:"default_model" yaml:"default_model"`
	// MaxTokens bounds each answer.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Sampling parameters are sent only when set.
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	// TimeoutMS configures request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms" yaml:"timeout_ms"`
	// Retry bounds transport retries and malformed-fragment bursts.
	Retry RetryConfig `json:"retry" yaml:"retry"`
	// SystemPrompt replaces DefaultSystemPrompt when set.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	// ModelAliases maps friendly names (e.g., r1) to provider model ids.
	ModelAliases map[string]string `json:"model_aliases" yaml:"model_aliases"`
}

// RetryConfig is the file form of openai.RetryPolicy.
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	DelayMS     int `json:"delay_ms" yaml:"delay_ms"`
}

var (
	// ErrProviderConfigMissing is returned when the config file does not exist
	// and the environment does not provide an API key either.
	ErrProviderConfigMissing = errors.New("provider config missing")
	// ErrProviderConfigInvalid is returned when a field holds an unusable value.
	ErrProviderConfigInvalid = errors.New("provider config invalid")
)

// ProviderConfigPath returns the default provider config path.
func ProviderConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".reasonchat", "config.json"), nil
}

// LoadProviderConfig reads the provider config, applies environment
// overrides and defaults, and validates it. A missing API key is not an
// error here; the chat client reports it before any request is made.
func LoadProviderConfig(path string) (*ProviderConfig, error) {
	if path == "" {
		var err error
		path, err = ProviderConfigPath()
		if err != nil {
			return nil, err
		}
	}

	var cfg ProviderConfig
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, raw, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment-only setups are fine as long as a key is provided.
		if os.Getenv(EnvAPIKey) == "" {
			return nil, ErrProviderConfigMissing
		}
	default:
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode picks the format from the file extension.
func decode(path string, raw []byte, cfg *ProviderConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse provider config: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse provider config: %w", err)
		}
	}
	return nil
}

func (c *ProviderConfig) applyEnv() {
	if value := os.Getenv(EnvAPIKey); value != "" {
		c.APIKey = value
	}
	if value := os.Getenv(EnvBaseURL); value != "" {
		c.APIBaseURL = value
	}
	if value := os.Getenv(EnvModel); value != "" {
		c.DefaultModel = value
	}
}

func (c *ProviderConfig) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultBaseURL
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	defaults := openai.DefaultRetryPolicy()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if c.Retry.DelayMS == 0 {
		c.Retry.DelayMS = int(defaults.Delay / time.Millisecond)
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.ModelAliases == nil {
		c.ModelAliases = make(map[string]string)
	}
}

func (c *ProviderConfig) validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("%w: api_base_url %q must be an http(s) url", ErrProviderConfigInvalid, c.APIBaseURL)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative", ErrProviderConfigInvalid)
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.DelayMS < 0 {
		return fmt.Errorf("%w: retry values must not be negative", ErrProviderConfigInvalid)
	}
	if err := checkRange("temperature", c.Temperature, 0, 2); err != nil {
		return err
	}
	if err := checkRange("top_p", c.TopP, 0, 1); err != nil {
		return err
	}
	if err := checkRange("frequency_penalty", c.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	return checkRange("presence_penalty", c.PresencePenalty, -2, 2)
}

func checkRange(name string, value *float64, low float64, high float64) error {
	if value == nil {
		return nil
	}
	if *value < low || *value > high {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrProviderConfigInvalid, name, *value, low, high)
	}
	return nil
}

// RequestConfig builds the immutable snapshot the chat client uses.
func (c *ProviderConfig) RequestConfig(model string) chat.RequestConfig {
	if model == "" {
		model = c.DefaultModel
	}
	return chat.RequestConfig{
		APIKey:           c.APIKey,
		BaseURL:          c.APIBaseURL,
		Model:            model,
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		TopP:             c.TopP,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
	}
}

// RetryPolicy converts the retry section.
func (c *ProviderConfig) RetryPolicy() openai.RetryPolicy {
	return openai.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       time.Duration(c.Retry.DelayMS) * time.Millisecond,
	}.Normalize()
}

// Timeout returns the request timeout.
func (c *ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ResolveModel returns the model for the session. The CLI flag wins over
// the preset, and both go through the alias table.
func ResolveModel(cfg *ProviderConfig, cliModel string, preset string) string {
	if cliModel != "" {
		return aliasModel(cfg, cliModel)
	}
	if preset != "" {
		return aliasModel(cfg, preset)
	}
	if cfg == nil {
		return DefaultModel
	}
	return cfg.DefaultModel
}

// IsPreset reports whether name is one of Presets.
func IsPreset(name string) bool {
	for _, preset := range Presets {
		if preset.Name == name {
			return true
		}
	}
	return false
}

// aliasModel resolves an alias to a provider model name.
func aliasModel(cfg *ProviderConfig, name string) string {
	if cfg == nil {
		return name
	}
	if aliased, ok := cfg.ModelAliases[name]; ok {
		return aliased
	}
	return name
}
