package openai

// StreamResponse is the OpenAI-compatible SSE response payload.
type StreamResponse struct {
	// ID is the provider request id.
	ID string `json:"id,omitempty"`
	// Model is the model identifier for the stream.
	Model string `json:"model,omitempty"`
	// Choices carries incremental delta updates.
	Choices []StreamChoice `json:"choices,omitempty"`
}

// StreamChoice represents a streaming choice delta.
type StreamChoice struct {
	// Index is the choice index.
	Index int `json:"index"`
	// Delta holds the incremental message update. It is nil when the
	// provider omitted the field.
	Delta *StreamDelta `json:"delta"`
	// FinishReason signals why generation stopped.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// StreamDelta represents incremental message content. Pointer fields
// distinguish an absent key from an empty string.
type StreamDelta struct {
	// Role sets the assistant role on the first delta.
	Role string `json:"role,omitempty"`
	// Content holds streamed answer text.
	Content *string `json:"content,omitempty"`
	// ReasoningContent holds streamed thinking text on endpoints that
	// separate it from the answer.
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// Fragment is one decoded SSE data line reduced to its text increments.
type Fragment struct {
	// Content is the answer increment, nil when absent.
	Content *string
	// ReasoningContent is the reasoning increment, nil when absent.
	ReasoningContent *string
	// FinishReason is set on the final fragment of a choice.
	FinishReason string
}
