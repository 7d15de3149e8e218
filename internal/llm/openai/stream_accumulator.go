package openai

import (
	"strings"
)

// StreamAccumulator builds the full reasoning and answer text from
// streaming fragments.
type StreamAccumulator struct {
	// reasoningBuilder accumulates reasoning_content increments.
	reasoningBuilder strings.Builder
	// contentBuilder accumulates content increments.
	contentBuilder strings.Builder
	// finishReason stores the latest finish reason.
	finishReason string
	// fragments counts applied fragments.
	fragments int
}

// NewStreamAccumulator creates a new accumulator for a streaming response.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Apply ingests a fragment and updates the accumulator state.
func (acc *StreamAccumulator) Apply(fragment Fragment) {
	acc.fragments++
	if fragment.ReasoningContent != nil {
		acc.reasoningBuilder.WriteString(*fragment.ReasoningContent)
	}
	if fragment.Content != nil {
		acc.contentBuilder.WriteString(*fragment.Content)
	}
	if fragment.FinishReason != "" {
		acc.finishReason = fragment.FinishReason
	}
}

// Reasoning returns the accumulated reasoning_content text.
func (acc *StreamAccumulator) Reasoning() string {
	return acc.reasoningBuilder.String()
}

// Content returns the accumulated content text.
func (acc *StreamAccumulator) Content() string {
	return acc.contentBuilder.String()
}

// Empty reports whether neither reasoning nor content text arrived.
func (acc *StreamAccumulator) Empty() bool {
	return acc.reasoningBuilder.Len() == 0 && acc.contentBuilder.Len() == 0
}

// FinishReason returns the most recent finish reason.
func (acc *StreamAccumulator) FinishReason() string {
	return acc.finishReason
}

// Fragments returns how many fragments were applied.
func (acc *StreamAccumulator) Fragments() int {
	return acc.fragments
}
