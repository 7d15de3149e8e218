package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/reasonchat/reasonchat/internal/chat"
)

func TestTUIModelAppliesStreamEvents(t *testing.T) {
	conv := newTestConversation(t, "http://example.invalid", nil)
	conv.history = []chat.Message{chat.User("earlier"), chat.AssistantWithReasoning("old thoughts", "old answer")}

	model := newTUIModel(conv, "")
	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 1, model.turns)
	assert.Equal(t, "old thoughts", model.reasoningText)
	assert.Len(t, model.chatMessages, 2)

	model.running = true
	model.applyEvent(chat.StreamEvent{Kind: chat.EventResponse, Text: "<think>x"})
	model.applyEvent(chat.StreamEvent{Kind: chat.EventReasoning, Text: "x", Replace: true})
	model.applyEvent(chat.StreamEvent{Kind: chat.EventResponse, Text: "y", Replace: true})
	assert.Equal(t, "x", model.reasoningText)
	assert.Equal(t, "y", model.responseText)

	model.finishRun(streamDoneMsg{Result: chat.Result{Reasoning: "x", Response: "y"}})
	assert.False(t, model.running)
	assert.Equal(t, 2, model.turns)
	assert.Equal(t, tuiMessage{Role: "assistant", Content: "y"}, model.chatMessages[len(model.chatMessages)-1])
	assert.Contains(t, model.View(), "Reasoning")
}

func TestTUIModelReportsFailure(t *testing.T) {
	conv := newTestConversation(t, "http://example.invalid", nil)
	model := newTUIModel(conv, "")
	model.running = true

	model.finishRun(streamDoneMsg{Err: errors.Join(chat.ErrNoContent)})
	assert.False(t, model.running)
	assert.Equal(t, "The model returned an empty answer.", model.statusText)
	assert.Empty(t, model.chatMessages)
}
