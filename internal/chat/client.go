package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

var tracer = otel.Tracer("github.com/reasonchat/reasonchat/internal/chat")

// Result is the reasoning and answer of a completed turn.
type Result struct {
	Reasoning string
	Response  string
}

// Message returns the result as an assistant message for history.
func (r Result) Message() Message {
	return AssistantWithReasoning(r.Reasoning, r.Response)
}

// Client streams chat completions. It never mutates its configuration, so
// it is safe for concurrent use; each call works on its own snapshot.
type Client struct {
	// cfg is the snapshot used by every call.
	cfg RequestConfig
	// transport is shared by all calls.
	transport *openai.Transport
	// logger records per-call diagnostics.
	logger *slog.Logger
	// clock feeds the decoder's burst window.
	clock func() time.Time
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	policy     openai.RetryPolicy
	logger     *slog.Logger
	clock      func() time.Time
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithRetryPolicy sets the retry policy for connection and decode failures.
func WithRetryPolicy(policy openai.RetryPolicy) Option {
	return func(o *clientOptions) {
		o.policy = policy
	}
}

// WithLogger sets the logger. Without one the client is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithClock replaces time.Now in the stream decoder.
func WithClock(clock func() time.Time) Option {
	return func(o *clientOptions) {
		o.clock = clock
	}
}

// New returns a client for cfg.
func New(cfg RequestConfig, opts ...Option) *Client {
	options := clientOptions{policy: openai.DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.New(slog.DiscardHandler)
	}
	if options.clock == nil {
		options.clock = time.Now
	}
	return &Client{
		cfg:       cfg.clone(),
		transport: openai.NewTransport(options.httpClient, options.policy, options.logger),
		logger:    options.logger,
		clock:     options.clock,
	}
}

// WithConfig returns a client that uses cfg for subsequent calls. The
// receiver is unchanged, so streams already running keep their snapshot.
func (c *Client) WithConfig(cfg RequestConfig) *Client {
	next := *c
	next.cfg = cfg.clone()
	return &next
}

// Config returns a copy of the configuration snapshot.
func (c *Client) Config() RequestConfig {
	return c.cfg.clone()
}

// Stream returns a lazy, single-use sequence of events for one turn. The
// request is sent when iteration starts. Reasoning and Response events are
// followed by exactly one Complete or Error event. Stopping early closes
// the connection.
func (c *Client) Stream(ctx context.Context, systemPrompt string, history []Message, userInput string) iter.Seq[StreamEvent] {
	cfg := c.cfg.clone()
	history = append([]Message(nil), history...)

	return func(yield func(StreamEvent) bool) {
		logger := c.logger.With("request_id", uuid.NewString(), "model", cfg.Model)
		ctx, span := tracer.Start(ctx, "chat.Stream", trace.WithAttributes(
			attribute.String("llm.model", cfg.Model),
			attribute.Int("llm.history_messages", len(history)),
		))
		defer span.End()

		started := time.Now()
		result, err := c.stream(ctx, cfg, logger, systemPrompt, history, userInput, yield)
		switch {
		case errors.Is(err, errStopped):
			span.SetAttributes(attribute.String("llm.outcome", "abandoned"))
			logger.Debug("chat stream abandoned by consumer")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("llm.outcome", "error"))
			logger.Warn("chat stream failed", "error", err, "duration", time.Since(started))
			yield(errorEvent(err))
		default:
			span.SetAttributes(attribute.String("llm.outcome", "complete"))
			logger.Info("chat stream complete",
				"duration", time.Since(started),
				"reasoning_chars", len(result.Reasoning),
				"response_chars", len(result.Response),
			)
			yield(completeEvent(result))
		}
	}
}

// stream runs one request and forwards intermediate events to yield.
func (c *Client) stream(
	ctx context.Context,
	cfg RequestConfig,
	logger *slog.Logger,
	systemPrompt string,
	history []Message,
	userInput string,
	yield func(StreamEvent) bool,
) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	api := openai.NewClient(cfg.BaseURL, cfg.APIKey, c.transport)
	request := cfg.chatRequest(BuildMessages(systemPrompt, history, userInput))
	logger.Debug("opening chat stream", "url", api.CompletionsURL(), "messages", len(request.Messages))

	body, err := api.OpenStream(ctx, request)
	if err != nil {
		return Result{}, err
	}
	defer body.Close()

	decoder := openai.NewStreamDecoder(body, api.Policy(),
		openai.WithDecoderLogger(logger),
		openai.WithClock(c.clock),
	)
	state := newStreamState()
	for {
		fragment, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, err
		}
		for _, event := range state.apply(fragment) {
			if !yield(event) {
				return Result{}, errStopped
			}
		}
	}
	logger.Debug("chat stream drained",
		"fragments", state.acc.Fragments(),
		"finish_reason", state.acc.FinishReason(),
	)
	return state.finish()
}

// Generate drains Stream and returns the final pair, or the cause of the
// Error event.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []Message, userInput string) (Result, error) {
	for event := range c.Stream(ctx, systemPrompt, history, userInput) {
		switch event.Kind {
		case EventComplete:
			return Result{Reasoning: event.Reasoning, Response: event.Response}, nil
		case EventError:
			return Result{}, event.Err
		}
	}
	return Result{}, ErrNoContent
}

// Complete sends a non-streaming request and splits the reply the same
// way a stream is split.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []Message, userInput string) (Result, error) {
	cfg := c.cfg.clone()
	ctx, span := tracer.Start(ctx, "chat.Complete", trace.WithAttributes(attribute.String("llm.model", cfg.Model)))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	api := openai.NewClient(cfg.BaseURL, cfg.APIKey, c.transport)
	response, err := api.ChatCompletions(ctx, cfg.chatRequest(BuildMessages(systemPrompt, history, userInput)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	message := response.Choices[0].Message
	if message.Content == "" && message.ReasoningContent == "" {
		return Result{}, ErrNoContent
	}
	return splitResult(message.ReasoningContent, message.Content), nil
}
