package main

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchat/reasonchat/internal/config"
)

func TestValidateFormatOptions(t *testing.T) {
	cases := []struct {
		name        string
		opts        options
		expectError string
	}{
		{name: "interactive default ok", opts: options{OutputFormat: "text"}},
		{name: "json print ok", opts: options{Print: true, OutputFormat: "json"}},
		{name: "stream-json print ok", opts: options{Print: true, OutputFormat: "stream-json"}},
		{name: "output format requires print", opts: options{OutputFormat: "json"}, expectError: "--output-format only works with --print"},
		{name: "unknown format", opts: options{Print: true, OutputFormat: "xml"}, expectError: "unsupported output format"},
		{name: "unknown preset", opts: options{Preset: "gpt-9"}, expectError: "unknown preset"},
		{name: "bad session id", opts: options{SessionID: "abc"}, expectError: "valid UUID"},
		{name: "good session id", opts: options{SessionID: "11111111-2222-3333-4444-555555555555"}},
	}

	for _, item := range cases {
		t.Run(item.name, func(t *testing.T) {
			err := validateFormatOptions(&item.opts)
			if item.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), item.expectError)
		})
	}
}

func TestBuildRequestConfigAppliesChangedFlags(t *testing.T) {
	opts := &options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	applyFlags(flags, opts)
	require.NoError(t, flags.Parse([]string{"--preset", "deepseek-chat", "--temperature", "0", "--max_tokens", "256"}))

	providerCfg := &config.ProviderConfig{APIKey: "k", APIBaseURL: config.DefaultBaseURL, DefaultModel: config.DefaultModel, MaxTokens: 8192}
	requestCfg := buildRequestConfig(flags, opts, providerCfg)

	assert.Equal(t, "deepseek-chat", requestCfg.Model)
	assert.Equal(t, 256, requestCfg.MaxTokens)
	require.NotNil(t, requestCfg.Temperature)
	assert.Zero(t, *requestCfg.Temperature)
	assert.Nil(t, requestCfg.TopP)
}

func TestReadPrompt(t *testing.T) {
	prompt, err := readPrompt(strings.NewReader("ignored"), []string{"what", "is", "2+2?"})
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2?", prompt)

	prompt, err = readPrompt(strings.NewReader("  from stdin\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", prompt)

	_, err = readPrompt(strings.NewReader(" "), nil)
	assert.Error(t, err)
}
