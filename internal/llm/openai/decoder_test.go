package openai

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func collectFragments(t *testing.T, decoder *StreamDecoder) ([]Fragment, error) {
	t.Helper()
	var fragments []Fragment
	for {
		fragment, err := decoder.Next()
		if err != nil {
			if err == io.EOF {
				return fragments, nil
			}
			return fragments, err
		}
		fragments = append(fragments, fragment)
	}
}

func TestStreamDecoderParsesFrames(t *testing.T) {
	input := strings.Join([]string{
		`: keep-alive comment`,
		``,
		`event: message`,
		`data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"reasoning_content":"think"}}]}`,
		`data:{"choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":""},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"index":0,"delta":{"content":"after done"}}]}`,
	}, "\n")

	decoder := NewStreamDecoder(strings.NewReader(input), RetryPolicy{MaxAttempts: 3, Delay: time.Second})
	fragments, err := collectFragments(t, decoder)
	require.NoError(t, err)
	require.Len(t, fragments, 4)

	assert.Nil(t, fragments[0].Content)
	assert.Nil(t, fragments[0].ReasoningContent)
	require.NotNil(t, fragments[1].ReasoningContent)
	assert.Equal(t, "think", *fragments[1].ReasoningContent)
	require.NotNil(t, fragments[2].Content)
	assert.Equal(t, "Hello", *fragments[2].Content)
	assert.Equal(t, "stop", fragments[3].FinishReason)
}

func TestStreamDecoderSkipsMissingChoices(t *testing.T) {
	input := "data: {\"id\":\"x\"}\n\ndata: {\"choices\":[]}\n\ndata: {\"choices\":[{\"index\":0}]}\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n"

	decoder := NewStreamDecoder(strings.NewReader(input), RetryPolicy{MaxAttempts: 1, Delay: time.Second})
	fragments, err := collectFragments(t, decoder)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "ok", *fragments[0].Content)
}

func TestStreamDecoderAbortsOnBurst(t *testing.T) {
	lines := strings.Repeat("data: {not json\n\n", 5)
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Second}

	decoder := NewStreamDecoder(strings.NewReader(lines), policy, WithClock(steppingClock(10*time.Millisecond)))
	_, err := collectFragments(t, decoder)

	var exhausted *DecodeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Count)
}

func TestStreamDecoderToleratesSpreadErrors(t *testing.T) {
	lines := strings.Repeat("data: {not json\n\n", 10) + "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n"
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Second}

	decoder := NewStreamDecoder(strings.NewReader(lines), policy, WithClock(steppingClock(2*time.Second)))
	fragments, err := collectFragments(t, decoder)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
}

func TestStreamDecoderEndsOnClosedBody(t *testing.T) {
	decoder := NewStreamDecoder(strings.NewReader(`data: {"choices":[{"index":0,"delta":{"content":"tail"}}]}`), DefaultRetryPolicy())
	fragments, err := collectFragments(t, decoder)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "tail", *fragments[0].Content)

	_, err = decoder.Next()
	assert.Equal(t, io.EOF, err)
}
