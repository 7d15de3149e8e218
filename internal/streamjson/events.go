package streamjson

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/reasonchat/reasonchat/internal/chat"
)

// Message represents the high-level message payload used in stream-json events.
type Message struct {
	// Role is one of user, assistant, or system.
	Role string `json:"role"`
	// Content is a list of content blocks.
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a thinking or text block of a message.
type ContentBlock struct {
	// Type is "thinking" or "text".
	Type string `json:"type"`
	// Text carries text content.
	Text string `json:"text,omitempty"`
	// Thinking carries the reasoning trace.
	Thinking string `json:"thinking,omitempty"`
}

// SystemEvent announces the session before any output.
type SystemEvent struct {
	// Type is always "system".
	Type string `json:"type"`
	// Subtype categorizes the system event.
	Subtype string `json:"subtype"`
	// Model is the model the turn is sent to.
	Model string `json:"model,omitempty"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
}

// UserEvent echoes the prompt of a turn.
type UserEvent struct {
	Type      string  `json:"type"`
	Message   Message `json:"message"`
	SessionID string  `json:"session_id"`
	UUID      string  `json:"uuid"`
}

// AssistantEvent carries the final reasoning and answer of a turn.
type AssistantEvent struct {
	// Type is always "assistant".
	Type string `json:"type"`
	// Message carries the assistant message payload.
	Message Message `json:"message"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
}

// StreamEvent wraps one incremental reasoning or response update.
type StreamEvent struct {
	// Type is always "stream_event".
	Type string `json:"type"`
	// Event contains the streaming payload.
	Event DeltaEvent `json:"event"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
}

// DeltaEvent is the payload of a StreamEvent.
type DeltaEvent struct {
	// Type is "reasoning_delta" or "response_delta".
	Type string `json:"type"`
	// Text is the increment, or the full text so far when Replace is set.
	Text string `json:"text"`
	// Replace tells consumers to overwrite rather than append.
	Replace bool `json:"replace,omitempty"`
}

// ResultEvent represents the terminal stream-json result.
type ResultEvent struct {
	// Type is always "result".
	Type string `json:"type"`
	// Subtype is "success" or "error".
	Subtype string `json:"subtype"`
	// IsError reports whether the result indicates an error.
	IsError bool `json:"is_error"`
	// DurationMS is the total runtime in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// NumTurns is the number of turns in the conversation so far.
	NumTurns int `json:"num_turns"`
	// Result contains the final answer.
	Result string `json:"result,omitempty"`
	// Reasoning contains the final reasoning.
	Reasoning string `json:"reasoning,omitempty"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Errors holds error messages for error subtypes.
	Errors []string `json:"errors,omitempty"`
}

// Writer emits stream-json events as JSON Lines.
type Writer struct {
	writer io.Writer
}

// NewWriter constructs a stream-json writer.
func NewWriter(writer io.Writer) *Writer {
	return &Writer{writer: writer}
}

// Write emits a single event as a JSON line.
func (w *Writer) Write(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream-json event: %w", err)
	}
	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write stream-json event: %w", err)
	}
	return nil
}

// NewUUID returns a new UUID string for stream-json events.
func NewUUID() string {
	return uuid.NewString()
}

// BuildSystemInit announces a session and model.
func BuildSystemInit(sessionID string, model string) SystemEvent {
	return SystemEvent{Type: "system", Subtype: "init", Model: model, SessionID: sessionID, UUID: NewUUID()}
}

// BuildUserEvent echoes a prompt.
func BuildUserEvent(sessionID string, prompt string) UserEvent {
	return UserEvent{
		Type:      "user",
		Message:   Message{Role: "user", Content: []ContentBlock{{Type: "text", Text: prompt}}},
		SessionID: sessionID,
		UUID:      NewUUID(),
	}
}

// BuildAssistantMessage turns a finished turn into thinking and text blocks.
// The placeholder reasoning is left out.
func BuildAssistantMessage(result chat.Result) Message {
	var blocks []ContentBlock
	if result.Reasoning != "" && result.Reasoning != chat.NoReasoning {
		blocks = append(blocks, ContentBlock{Type: "thinking", Thinking: result.Reasoning})
	}
	blocks = append(blocks, ContentBlock{Type: "text", Text: result.Response})
	return Message{Role: "assistant", Content: blocks}
}

// BuildEvents converts one chat event into the lines it produces. A
// Complete event yields the assistant message followed by the result; an
// Error event yields only the result.
func BuildEvents(event chat.StreamEvent, sessionID string, elapsed time.Duration, turns int) []any {
	switch event.Kind {
	case chat.EventReasoning:
		return []any{buildDelta("reasoning_delta", event, sessionID)}
	case chat.EventResponse:
		return []any{buildDelta("response_delta", event, sessionID)}
	case chat.EventComplete:
		result := chat.Result{Reasoning: event.Reasoning, Response: event.Response}
		return []any{
			AssistantEvent{Type: "assistant", Message: BuildAssistantMessage(result), SessionID: sessionID, UUID: NewUUID()},
			ResultEvent{
				Type:       "result",
				Subtype:    "success",
				DurationMS: elapsed.Milliseconds(),
				NumTurns:   turns,
				Result:     event.Response,
				Reasoning:  event.Reasoning,
				SessionID:  sessionID,
				UUID:       NewUUID(),
			},
		}
	case chat.EventError:
		errText := event.Response
		if event.Err != nil {
			errText = event.Err.Error()
		}
		return []any{ResultEvent{
			Type:       "result",
			Subtype:    "error",
			IsError:    true,
			DurationMS: elapsed.Milliseconds(),
			NumTurns:   turns,
			SessionID:  sessionID,
			UUID:       NewUUID(),
			Errors:     []string{errText},
		}}
	default:
		return nil
	}
}

func buildDelta(kind string, event chat.StreamEvent, sessionID string) StreamEvent {
	return StreamEvent{
		Type:      "stream_event",
		Event:     DeltaEvent{Type: kind, Text: event.Text, Replace: event.Replace},
		SessionID: sessionID,
		UUID:      NewUUID(),
	}
}
