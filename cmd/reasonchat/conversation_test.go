package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/llm/openai"
	"github.com/reasonchat/reasonchat/internal/session"
	"github.com/reasonchat/reasonchat/internal/testutil"
)

func newTestConversation(t *testing.T, baseURL string, store *session.Store) *conversation {
	t.Helper()
	client := chat.New(
		chat.RequestConfig{APIKey: "k", BaseURL: baseURL, Model: "deepseek-reasoner"},
		chat.WithRetryPolicy(openai.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}),
	)
	return &conversation{
		client:       client,
		store:        store,
		sessionID:    "11111111-2222-3333-4444-555555555555",
		projectHash:  "project",
		systemPrompt: "sys",
		logger:       slog.New(slog.DiscardHandler),
	}
}

func TestConversationTurnPersists(t *testing.T) {
	server := testutil.NewSSEServer(t, testutil.Reasoning("why"), testutil.Content("because"), testutil.Done)
	store := &session.Store{BaseDir: t.TempDir()}
	conv := newTestConversation(t, server.URL, store)

	var kinds []chat.EventKind
	result, err := conv.Turn(context.Background(), "question", func(event chat.StreamEvent) {
		kinds = append(kinds, event.Kind)
	})
	require.NoError(t, err)
	assert.Equal(t, chat.Result{Reasoning: "why", Response: "because"}, result)
	assert.Equal(t, []chat.EventKind{chat.EventReasoning, chat.EventResponse, chat.EventComplete}, kinds)

	stored, err := store.LoadMessages(conv.sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "question", stored[0].Text())
	assert.Equal(t, "why", stored[1].Reasoning())

	last, err := store.LoadLastSession("project")
	require.NoError(t, err)
	assert.Equal(t, conv.sessionID, last)

	// The next turn carries the previous reasoning back to the server.
	_, err = conv.Turn(context.Background(), "follow up", nil)
	require.NoError(t, err)
	messages := server.LastRequest(t)["messages"].([]any)
	require.Len(t, messages, 4)
	assert.Contains(t, messages[2].(map[string]any)["content"], "why")
}

func TestConversationFailureKeepsHistory(t *testing.T) {
	server := testutil.NewStatusServer(t, http.StatusUnauthorized, `{"error":"bad key"}`)
	conv := newTestConversation(t, server.URL, nil)

	_, err := conv.Turn(context.Background(), "question", nil)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Empty(t, conv.History())
}

func TestConversationFallbackModel(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model string `json:"model"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		models = append(models, payload.Model)
		if payload.Model == "deepseek-reasoner" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "%s\n\n%s\n\n", testutil.Content("fallback answer"), testutil.Done)
	}))
	t.Cleanup(server.Close)

	conv := newTestConversation(t, server.URL, nil)
	conv.fallbackModel = "deepseek-chat"

	var errorsSeen int
	result, err := conv.Turn(context.Background(), "q", func(event chat.StreamEvent) {
		if event.Kind == chat.EventError {
			errorsSeen++
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", result.Response)
	assert.Equal(t, 0, errorsSeen)
	assert.Equal(t, []string{"deepseek-reasoner", "deepseek-reasoner", "deepseek-chat"}, models)
	// The primary model stays selected for the next turn.
	assert.Equal(t, "deepseek-reasoner", conv.Model())
}

func TestRunPrintModeFormats(t *testing.T) {
	server := testutil.NewSSEServer(t, testutil.Content("<think>plan</think>answer"), testutil.Done)

	t.Run("text", func(t *testing.T) {
		var out, errOut bytes.Buffer
		conv := newTestConversation(t, server.URL, nil)
		require.NoError(t, runPrintMode(context.Background(), conv, "q", "text", &out, &errOut))
		assert.Contains(t, out.String(), "answer")
		assert.Contains(t, errOut.String(), "plan")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		conv := newTestConversation(t, server.URL, nil)
		require.NoError(t, runPrintMode(context.Background(), conv, "q", "json", &out, io.Discard))
		var payload map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
		assert.Equal(t, "plan", payload["reasoning"])
		assert.Equal(t, "answer", payload["response"])
		assert.Equal(t, conv.sessionID, payload["session_id"])
	})

	t.Run("stream-json", func(t *testing.T) {
		var out bytes.Buffer
		conv := newTestConversation(t, server.URL, nil)
		require.NoError(t, runPrintMode(context.Background(), conv, "q", "stream-json", &out, io.Discard))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		var types []string
		for _, line := range lines {
			var event map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &event))
			types = append(types, event["type"].(string))
		}
		assert.Equal(t, "system", types[0])
		assert.Equal(t, "user", types[1])
		assert.Equal(t, "assistant", types[len(types)-2])
		assert.Equal(t, "result", types[len(types)-1])

		var result map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &result))
		assert.Equal(t, "success", result["subtype"])
		assert.EqualValues(t, 1, result["num_turns"])
	})
}

func TestRunInteractiveLineMode(t *testing.T) {
	server := testutil.NewSSEServer(t, testutil.Content("hello back"), testutil.Done)
	conv := newTestConversation(t, server.URL, nil)

	in := strings.NewReader("/model deepseek-chat\nsecond\n/clear\n/exit\nnever sent\n")
	var out, errOut bytes.Buffer
	require.NoError(t, runInteractive(conv, in, &out, &errOut, "first"))

	assert.Equal(t, 2, server.Hits())
	assert.Equal(t, "deepseek-chat", server.LastRequest(t)["model"])
	assert.Contains(t, out.String(), "hello back")
	assert.Contains(t, out.String(), "Conversation history cleared.")
	assert.Empty(t, conv.History())
}
