package main

import (
	"context"
	"log/slog"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/llm/openai"
	"github.com/reasonchat/reasonchat/internal/session"
)

// conversation owns the history of one session and runs turns against it.
type conversation struct {
	// client is replaced, never mutated, when the model changes.
	client *chat.Client
	// store persists completed turns; nil disables persistence.
	store *session.Store
	// sessionID names the JSONL file turns are appended to.
	sessionID string
	// projectHash records the session as the latest for the workspace.
	projectHash string
	// systemPrompt is sent first on every turn.
	systemPrompt string
	// fallbackModel is tried once when the transport gives up.
	fallbackModel string
	// history holds completed turns only.
	history []chat.Message
	logger  *slog.Logger
}

// Model returns the model the next turn is sent to.
func (c *conversation) Model() string {
	return c.client.Config().Model
}

// SetModel swaps in a client with a new config snapshot. Turns already
// streaming keep the old one.
func (c *conversation) SetModel(model string) {
	c.client = c.client.WithConfig(c.client.Config().WithModel(model))
}

// Clear drops the in-memory history. The session file is left alone.
func (c *conversation) Clear() {
	c.history = nil
}

// History returns a copy of the completed turns.
func (c *conversation) History() []chat.Message {
	return append([]chat.Message(nil), c.history...)
}

// Turn streams one answer, forwarding every event to onEvent, and records
// the turn when it completes. The returned error mirrors the Error event.
func (c *conversation) Turn(ctx context.Context, input string, onEvent func(chat.StreamEvent)) (chat.Result, error) {
	result, err := c.run(ctx, c.client, input, onEvent)
	if err != nil && c.fallbackModel != "" && openai.IsRetryable(err) && ctx.Err() == nil {
		c.logger.Warn("primary model unavailable, trying fallback", "model", c.Model(), "fallback", c.fallbackModel, "error", err)
		fallback := c.client.WithConfig(c.client.Config().WithModel(c.fallbackModel))
		result, err = c.run(ctx, fallback, input, onEvent)
	}
	if err != nil {
		return chat.Result{}, err
	}

	turn := []chat.Message{chat.User(input), result.Message()}
	c.history = append(c.history, turn...)
	c.persist(turn)
	return result, nil
}

func (c *conversation) run(ctx context.Context, client *chat.Client, input string, onEvent func(chat.StreamEvent)) (chat.Result, error) {
	var (
		result chat.Result
		err    error
	)
	for event := range client.Stream(ctx, c.systemPrompt, c.history, input) {
		switch event.Kind {
		case chat.EventComplete:
			result = chat.Result{Reasoning: event.Reasoning, Response: event.Response}
		case chat.EventError:
			err = event.Err
			// A fallback retry gets its own terminal event.
			if c.fallbackModel != "" && openai.IsRetryable(err) && client == c.client {
				return chat.Result{}, err
			}
		}
		if onEvent != nil {
			onEvent(event)
		}
	}
	return result, err
}

func (c *conversation) persist(turn []chat.Message) {
	if c.store == nil {
		return
	}
	if err := c.store.AppendMessages(c.sessionID, turn...); err != nil {
		c.logger.Warn("persist session turn", "session_id", c.sessionID, "error", err)
		return
	}
	if c.projectHash != "" {
		if err := c.store.SaveLastSession(c.projectHash, c.sessionID); err != nil {
			c.logger.Warn("save last session", "error", err)
		}
	}
}
