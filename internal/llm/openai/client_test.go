package openai

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchat/reasonchat/internal/testutil"
)

func TestOpenStreamSendsRequest(t *testing.T) {
	server := testutil.NewSSEServer(t, testutil.Reasoning("r"), testutil.Content("c"), testutil.Done)
	client := NewClient(server.URL+"/", "key-1", NewTransport(nil, RetryPolicy{MaxAttempts: 1}, nil))

	temperature := 0.7
	body, err := client.OpenStream(context.Background(), &ChatRequest{
		Model:       "deepseek-reasoner",
		Messages:    []Message{{Role: "user", Content: "hello"}},
		MaxTokens:   8192,
		Temperature: &temperature,
	})
	require.NoError(t, err)
	defer body.Close()

	accumulator := NewStreamAccumulator()
	decoder := NewStreamDecoder(body, client.Policy())
	for {
		fragment, err := decoder.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		accumulator.Apply(fragment)
	}
	assert.Equal(t, "r", accumulator.Reasoning())
	assert.Equal(t, "c", accumulator.Content())
	assert.Equal(t, 2, accumulator.Fragments())

	payload := server.LastRequest(t)
	assert.Equal(t, "deepseek-reasoner", payload["model"])
	assert.Equal(t, true, payload["stream"])
	assert.EqualValues(t, 8192, payload["max_tokens"])
	assert.EqualValues(t, 0.7, payload["temperature"])
	assert.NotContains(t, payload, "top_p")
	assert.Equal(t, "Bearer key-1", server.LastHeader().Get("Authorization"))
	assert.Equal(t, "application/json", server.LastHeader().Get("Content-Type"))
}

func TestChatCompletionsParsesReasoning(t *testing.T) {
	server := testutil.NewStatusServer(t, http.StatusOK,
		`{"id":"req-1","choices":[{"index":0,"message":{"role":"assistant","content":"42","reasoning_content":"6*7"},"finish_reason":"stop"}]}`)
	client := NewClient(server.URL, "", NewTransport(nil, RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, nil))

	response, err := client.ChatCompletions(context.Background(), &ChatRequest{Model: "m", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "req-1", response.ID)
	assert.Equal(t, "42", response.Choices[0].Message.Content)
	assert.Equal(t, "6*7", response.Choices[0].Message.ReasoningContent)
	assert.NotContains(t, server.LastRequest(t), "stream")
	assert.Empty(t, server.LastHeader().Get("Authorization"))
}

func TestCompletionsURL(t *testing.T) {
	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", NewClient("https://api.deepseek.com/v1/", "", nil).CompletionsURL())
	assert.Equal(t, "http://gw/chat/completions", NewClient("http://gw/chat/completions", "", nil).CompletionsURL())
}
