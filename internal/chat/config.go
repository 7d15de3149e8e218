package chat

import (
	"fmt"
	"strings"

	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

// RequestConfig is the immutable snapshot a call is made with. Change
// settings by building a new value and passing it to Client.WithConfig.
type RequestConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	// Optional sampling parameters are omitted from the request when nil.
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Validate reports missing required fields as ErrConfig.
func (c RequestConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is not set", ErrConfig)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base url is not set", ErrConfig)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is not set", ErrConfig)
	}
	return nil
}

// WithModel returns a copy using model.
func (c RequestConfig) WithModel(model string) RequestConfig {
	c.Model = model
	return c
}

// WithTemperature returns a copy using temperature.
func (c RequestConfig) WithTemperature(temperature float64) RequestConfig {
	c.Temperature = &temperature
	return c
}

// clone copies the pointer fields so the snapshot shares nothing with the
// value it came from.
func (c RequestConfig) clone() RequestConfig {
	c.Temperature = cloneFloat(c.Temperature)
	c.TopP = cloneFloat(c.TopP)
	c.FrequencyPenalty = cloneFloat(c.FrequencyPenalty)
	c.PresencePenalty = cloneFloat(c.PresencePenalty)
	return c
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

// chatRequest builds the wire request for messages.
func (c RequestConfig) chatRequest(messages []openai.Message) *openai.ChatRequest {
	return &openai.ChatRequest{
		Model:            c.Model,
		Messages:         messages,
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		TopP:             c.TopP,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
	}
}
