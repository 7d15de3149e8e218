package chat

import (
	"errors"
)

// NoReasoning is reported as the reasoning of a completed turn when the
// endpoint produced no thinking trace at all.
const NoReasoning = "no reasoning provided"

var (
	// ErrConfig is returned when the request configuration is incomplete.
	// No network call is made.
	ErrConfig = errors.New("invalid chat configuration")
	// ErrNoContent is returned when a stream ended without any reasoning
	// or response text.
	ErrNoContent = errors.New("stream ended without content")
	// errStopped signals that the consumer stopped iterating.
	errStopped = errors.New("consumer stopped")
)
