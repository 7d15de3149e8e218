package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody caps how much of a non-2xx body is kept for error messages.
const maxErrorBody = 4096

// RetryPolicy bounds retries of transport failures and of consecutive
// malformed stream fragments.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, at least 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts and the quiet gap that
	// resets the malformed-fragment counter.
	Delay time.Duration
}

// DefaultRetryPolicy returns three attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

// Normalize clamps the policy to usable values.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Transport sends a single POST and retries transient failures with a fixed
// backoff. Once a 2xx body is handed back nothing is retried.
type Transport struct {
	// httpClient executes requests.
	httpClient *http.Client
	// policy bounds the retry loop.
	policy RetryPolicy
	// logger records failed attempts.
	logger *slog.Logger
}

// NewTransport constructs a transport. A nil client uses http.DefaultClient
// and a nil logger discards output.
func NewTransport(httpClient *http.Client, policy RetryPolicy, logger *slog.Logger) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transport{
		httpClient: httpClient,
		policy:     policy.Normalize(),
		logger:     logger,
	}
}

// Policy returns the normalized retry policy.
func (t *Transport) Policy() RetryPolicy {
	return t.policy
}

// Send posts body to url and returns the response body of the first 2xx
// reply. Streaming requests advertise text/event-stream. The caller owns
// the returned body.
func (t *Transport) Send(ctx context.Context, url string, headers http.Header, body []byte, streaming bool) (io.ReadCloser, error) {
	span := trace.SpanFromContext(ctx)
	var lastErr error

	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		// Apply the fixed delay before every retry.
		if attempt > 1 {
			if err := wait(ctx, t.policy.Delay); err != nil {
				return nil, err
			}
		}

		respBody, err := t.attempt(ctx, url, headers, body, streaming)
		if err == nil {
			span.SetAttributes(attribute.Int("http.attempts", attempt))
			return respBody, nil
		}
		// Cancellation is the caller's decision, never a transient failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		span.AddEvent("request attempt failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		))
		t.logger.Warn("chat request attempt failed",
			"attempt", attempt,
			"max_attempts", t.policy.MaxAttempts,
			"error", err,
		)
	}

	span.SetAttributes(attribute.Int("http.attempts", t.policy.MaxAttempts))
	return nil, &TransportExhaustedError{Attempts: t.policy.MaxAttempts, Err: lastErr}
}

// attempt performs one request and classifies the outcome.
func (t *Transport) attempt(ctx context.Context, url string, headers http.Header, body []byte, streaming bool) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}

	// Non-2xx responses carry a structured API error.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return nil, fmt.Errorf("read error body: %w", readErr)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp.Body, nil
}

// wait sleeps for delay unless ctx is cancelled first.
func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err came from an exhausted transport, which
// callers may treat as a signal to try a fallback model.
func IsRetryable(err error) bool {
	var exhausted *TransportExhaustedError
	return errors.As(err, &exhausted)
}
