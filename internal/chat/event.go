package chat

import (
	"fmt"
)

// EventKind tags a StreamEvent.
type EventKind int

const (
	// EventReasoning carries thinking text.
	EventReasoning EventKind = iota
	// EventResponse carries answer text.
	EventResponse
	// EventComplete ends a successful stream.
	EventComplete
	// EventError ends a failed stream.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReasoning:
		return "reasoning"
	case EventResponse:
		return "response"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// StreamEvent is one item of the sequence returned by Client.Stream.
type StreamEvent struct {
	// Kind selects which fields are meaningful.
	Kind EventKind
	// Text is the payload of Reasoning and Response events.
	Text string
	// Replace marks Text as the full text so far rather than an increment.
	Replace bool
	// Reasoning is the final reasoning of Complete, or a readable failure
	// description for Error.
	Reasoning string
	// Response is the final answer of Complete, or a readable failure
	// message for Error.
	Response string
	// Err is the cause of an Error event.
	Err error
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

func reasoningEvent(text string, replace bool) StreamEvent {
	return StreamEvent{Kind: EventReasoning, Text: text, Replace: replace}
}

func responseEvent(text string, replace bool) StreamEvent {
	return StreamEvent{Kind: EventResponse, Text: text, Replace: replace}
}

func completeEvent(result Result) StreamEvent {
	return StreamEvent{Kind: EventComplete, Reasoning: result.Reasoning, Response: result.Response}
}

func errorEvent(err error) StreamEvent {
	return StreamEvent{
		Kind:      EventError,
		Reasoning: fmt.Sprintf("reasoning failed: %v", err),
		Response:  fmt.Sprintf("sorry, an error occurred: %v", err),
		Err:       err,
	}
}
