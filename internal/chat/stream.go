package chat

import (
	"strings"

	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

// streamState classifies fragments of one stream into events.
type streamState struct {
	// acc holds the reasoning and content received so far.
	acc *openai.StreamAccumulator
}

func newStreamState() *streamState {
	return &streamState{acc: openai.NewStreamAccumulator()}
}

// apply ingests a fragment and returns the events it produces.
func (s *streamState) apply(fragment openai.Fragment) []StreamEvent {
	s.acc.Apply(fragment)

	var events []StreamEvent
	if fragment.ReasoningContent != nil && *fragment.ReasoningContent != "" {
		events = append(events, reasoningEvent(*fragment.ReasoningContent, false))
	}
	if fragment.Content != nil && *fragment.Content != "" {
		events = append(events, s.onContent(*fragment.Content)...)
	}
	return events
}

// onContent re-reads the whole content buffer because a think segment may
// span fragments. Once a complete segment exists the full reasoning and
// residual answer are re-sent as replacements; until then the increment
// passes through unchanged.
func (s *streamState) onContent(increment string) []StreamEvent {
	tagReasoning, response, found := ExtractThinking(s.acc.Content())
	if !found {
		return []StreamEvent{responseEvent(increment, false)}
	}
	return []StreamEvent{
		reasoningEvent(joinReasoning(s.acc.Reasoning(), tagReasoning), true),
		responseEvent(response, true),
	}
}

// finish produces the terminal pair from the complete buffers.
func (s *streamState) finish() (Result, error) {
	if s.acc.Empty() {
		return Result{}, ErrNoContent
	}
	return splitResult(s.acc.Reasoning(), s.acc.Content()), nil
}

// splitResult combines a dedicated reasoning field with any think segments
// embedded in content.
func splitResult(fieldReasoning string, content string) Result {
	tagReasoning, response, found := ExtractThinking(content)
	if !found {
		response = content
	}
	reasoning := joinReasoning(fieldReasoning, tagReasoning)
	if strings.TrimSpace(reasoning) == "" {
		reasoning = NoReasoning
	}
	return Result{Reasoning: reasoning, Response: response}
}

func joinReasoning(field string, tags string) string {
	switch {
	case field == "":
		return tags
	case tags == "":
		return field
	default:
		return field + "\n" + tags
	}
}
