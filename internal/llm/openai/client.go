package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to an OpenAI-compatible chat/completions endpoint.
type Client struct {
	// baseURL points to the OpenAI-compatible gateway.
	baseURL string
	// apiKey is sent as a bearer token, if provided.
	apiKey string
	// transport sends requests with retries.
	transport *Transport
}

// NewClient constructs a client that sends through transport.
func NewClient(baseURL string, apiKey string, transport *Transport) *Client {
	if transport == nil {
		transport = NewTransport(nil, DefaultRetryPolicy(), nil)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		transport: transport,
	}
}

// ChatCompletions executes a non-streaming chat/completions request.
func (c *Client) ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("chat request is required")
	}
	req.Stream = false

	// Marshal request payload once for consistent retries.
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	body, err := c.transport.Send(ctx, c.CompletionsURL(), c.headers(), payload, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	var parsed ChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	return &parsed, nil
}

// CompletionsURL normalizes the base URL to a chat/completions endpoint.
func (c *Client) CompletionsURL() string {
	if strings.HasSuffix(c.baseURL, "/chat/completions") {
		return c.baseURL
	}
	return c.baseURL + "/chat/completions"
}

// headers returns the JSON and bearer headers sent with every request.
func (c *Client) headers() http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}
	return headers
}
