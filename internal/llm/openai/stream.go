package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// OpenStream sends a streaming chat/completions request and returns the
// raw SSE body. Pass it to NewStreamDecoder; the caller must close it.
func (c *Client) OpenStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	if req == nil {
		return nil, errors.New("chat request is required")
	}
	req.Stream = true

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	return c.transport.Send(ctx, c.CompletionsURL(), c.headers(), payload, true)
}

// Policy returns the retry policy shared by the transport and decoders
// opened from this client.
func (c *Client) Policy() RetryPolicy {
	return c.transport.Policy()
}
