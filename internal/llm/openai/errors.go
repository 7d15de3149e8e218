package openai

import (
	"fmt"
)

// APIError represents an HTTP error from the OpenAI-compatible gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai api error: status %d: %s", e.StatusCode, e.Body)
}

// TransportExhaustedError is returned once every attempt allowed by the
// retry policy has failed.
type TransportExhaustedError struct {
	// Attempts is the number of requests sent.
	Attempts int
	// Err is the failure of the last attempt.
	Err error
}

func (e *TransportExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportExhaustedError) Unwrap() error {
	return e.Err
}

// DecodeExhaustedError aborts a stream after too many consecutive
// unparsable fragments inside the retry window.
type DecodeExhaustedError struct {
	// Count is the number of consecutive parse failures.
	Count int
	// Err is the most recent parse failure.
	Err error
}

func (e *DecodeExhaustedError) Error() string {
	return fmt.Sprintf("stream aborted after %d consecutive malformed fragments: %v", e.Count, e.Err)
}

func (e *DecodeExhaustedError) Unwrap() error {
	return e.Err
}
