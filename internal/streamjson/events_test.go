package streamjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchat/reasonchat/internal/chat"
)

func TestBuildAssistantMessageOmitsPlaceholder(t *testing.T) {
	withReasoning := BuildAssistantMessage(chat.Result{Reasoning: "think", Response: "answer"})
	require.Len(t, withReasoning.Content, 2)
	assert.Equal(t, ContentBlock{Type: "thinking", Thinking: "think"}, withReasoning.Content[0])
	assert.Equal(t, ContentBlock{Type: "text", Text: "answer"}, withReasoning.Content[1])

	placeholder := BuildAssistantMessage(chat.Result{Reasoning: chat.NoReasoning, Response: "answer"})
	require.Len(t, placeholder.Content, 1)
	assert.Equal(t, "text", placeholder.Content[0].Type)
}

func TestBuildEvents(t *testing.T) {
	delta := BuildEvents(chat.StreamEvent{Kind: chat.EventReasoning, Text: "A", Replace: true}, "s", 0, 1)
	require.Len(t, delta, 1)
	assert.Equal(t, DeltaEvent{Type: "reasoning_delta", Text: "A", Replace: true}, delta[0].(StreamEvent).Event)

	complete := BuildEvents(chat.StreamEvent{Kind: chat.EventComplete, Reasoning: "r", Response: "a"}, "s", 1500*time.Millisecond, 2)
	require.Len(t, complete, 2)
	assert.Equal(t, "assistant", complete[0].(AssistantEvent).Type)
	result := complete[1].(ResultEvent)
	assert.Equal(t, "success", result.Subtype)
	assert.Equal(t, int64(1500), result.DurationMS)
	assert.Equal(t, "a", result.Result)

	failed := BuildEvents(chat.StreamEvent{Kind: chat.EventError, Err: errors.New("boom")}, "s", 0, 1)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].(ResultEvent).IsError)
	assert.Equal(t, []string{"boom"}, failed[0].(ResultEvent).Errors)
}

func TestWriterEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(&buf)

	require.NoError(t, writer.Write(BuildSystemInit("s", "deepseek-reasoner")))
	require.NoError(t, writer.Write(BuildUserEvent("s", "hi")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "system", first["type"])
	assert.Equal(t, "init", first["subtype"])
	assert.Equal(t, "deepseek-reasoner", first["model"])
	assert.NotEmpty(t, first["uuid"])
}
