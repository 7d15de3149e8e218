package openai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// doneSentinel terminates an OpenAI-compatible event stream.
const doneSentinel = "[DONE]"

// StreamDecoder turns SSE lines into fragments. Isolated malformed lines are
// skipped; a burst of them within the retry window aborts the stream.
type StreamDecoder struct {
	// reader buffers the raw response body.
	reader *bufio.Reader
	// policy bounds consecutive parse failures.
	policy RetryPolicy
	// logger records skipped lines.
	logger *slog.Logger
	// now returns the current time.
	now func() time.Time
	// parseErrors counts consecutive parse failures.
	parseErrors int
	// lastParseError is when the previous parse failure happened.
	lastParseError time.Time
	// done is set once the sentinel or end of stream was reached.
	done bool
}

// DecoderOption customizes a StreamDecoder.
type DecoderOption func(*StreamDecoder)

// WithDecoderLogger sets the logger for skipped lines.
func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *StreamDecoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *StreamDecoder) {
		if now != nil {
			d.now = now
		}
	}
}

// NewStreamDecoder reads SSE lines from r.
func NewStreamDecoder(r io.Reader, policy RetryPolicy, opts ...DecoderOption) *StreamDecoder {
	decoder := &StreamDecoder{
		reader: bufio.NewReader(r),
		policy: policy.Normalize(),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(decoder)
	}
	return decoder
}

// Next returns the next fragment carrying a delta. It returns io.EOF after
// the [DONE] sentinel or when the body ends, and a *DecodeExhaustedError
// when malformed lines arrive faster than the policy tolerates.
func (d *StreamDecoder) Next() (Fragment, error) {
	for {
		if d.done {
			return Fragment{}, io.EOF
		}
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.done = true
				return Fragment{}, io.EOF
			}
			return Fragment{}, fmt.Errorf("read stream: %w", err)
		}

		payload, ok := framePayload(line)
		if !ok {
			continue
		}
		if payload == doneSentinel {
			d.done = true
			return Fragment{}, io.EOF
		}

		var event StreamResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			if exhausted := d.recordParseError(err); exhausted != nil {
				return Fragment{}, exhausted
			}
			d.logger.Debug("skipping malformed stream fragment", "error", err, "consecutive", d.parseErrors)
			continue
		}

		if len(event.Choices) == 0 || event.Choices[0].Delta == nil {
			d.logger.Debug("skipping stream fragment without delta", "id", event.ID)
			continue
		}
		choice := event.Choices[0]
		fragment := Fragment{
			Content:          choice.Delta.Content,
			ReasoningContent: choice.Delta.ReasoningContent,
		}
		if choice.FinishReason != nil {
			fragment.FinishReason = *choice.FinishReason
		}
		return fragment, nil
	}
}

// recordParseError applies the burst-window policy. Failures separated by
// more than the policy delay start a new run.
func (d *StreamDecoder) recordParseError(err error) error {
	now := d.now()
	if now.Sub(d.lastParseError) > d.policy.Delay {
		d.parseErrors = 0
	}
	d.parseErrors++
	d.lastParseError = now
	if d.parseErrors >= d.policy.MaxAttempts {
		return &DecodeExhaustedError{Count: d.parseErrors, Err: err}
	}
	return nil
}

// readLine returns one line without its terminator. A final line without a
// newline is returned before io.EOF.
func (d *StreamDecoder) readLine() (string, error) {
	line, err := d.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// framePayload strips SSE framing. It reports false for blank lines and for
// fields other than data.
func framePayload(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	if strings.HasPrefix(line, "data:") {
		payload := strings.TrimPrefix(line, "data:")
		payload = strings.TrimPrefix(payload, " ")
		return strings.TrimSpace(payload), true
	}
	// Ignore other SSE fields (event:, id:, retry:) and comments.
	if strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") ||
		strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "retry:") {
		return "", false
	}
	// Some gateways send bare JSON lines without framing.
	return strings.TrimSpace(line), true
}
