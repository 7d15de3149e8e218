package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/config"
	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

// streamPrinter renders stream events for text output: reasoning dimmed on
// errOut, the answer on out.
type streamPrinter struct {
	// out receives the answer.
	out io.Writer
	// errOut receives reasoning and error messages.
	errOut io.Writer
	// dim styles reasoning text.
	dim lipgloss.Style
	// reasoning and response are what has been printed so far.
	reasoning string
	response  string
	// diverged is set when a replacement no longer extends the printed
	// answer, so the final answer must be printed again.
	diverged bool
	// reasoningOpen and responseOpen track unterminated lines.
	reasoningOpen bool
	responseOpen  bool
}

func newStreamPrinter(out io.Writer, errOut io.Writer) *streamPrinter {
	return &streamPrinter{
		out:    out,
		errOut: errOut,
		dim:    lipgloss.NewStyle().Faint(true),
	}
}

// OnEvent prints one stream event.
func (p *streamPrinter) OnEvent(event chat.StreamEvent) {
	switch event.Kind {
	case chat.EventReasoning:
		if text, _ := advance(&p.reasoning, event); text != "" {
			fmt.Fprint(p.errOut, p.dim.Render(text))
			p.reasoningOpen = true
		}
	case chat.EventResponse:
		text, ok := advance(&p.response, event)
		if !ok {
			p.diverged = true
		}
		if text != "" && !p.diverged {
			p.closeReasoning()
			fmt.Fprint(p.out, text)
			p.responseOpen = true
		}
	case chat.EventComplete:
		p.closeReasoning()
		if p.diverged {
			p.closeResponse()
			fmt.Fprint(p.out, event.Response)
			p.responseOpen = true
		}
		p.closeResponse()
	case chat.EventError:
		p.closeReasoning()
		p.closeResponse()
		fmt.Fprintln(p.errOut, event.Response)
	}
}

// advance applies an event to the printed text and returns the part not yet
// printed. It reports false when a replacement does not extend printed.
func advance(printed *string, event chat.StreamEvent) (string, bool) {
	if !event.Replace {
		*printed += event.Text
		return event.Text, true
	}
	if !strings.HasPrefix(event.Text, *printed) {
		return "", false
	}
	suffix := event.Text[len(*printed):]
	*printed = event.Text
	return suffix, true
}

func (p *streamPrinter) closeReasoning() {
	if p.reasoningOpen {
		fmt.Fprintln(p.errOut)
		p.reasoningOpen = false
	}
}

func (p *streamPrinter) closeResponse() {
	if p.responseOpen {
		fmt.Fprintln(p.out)
		p.responseOpen = false
	}
}

// slashResult is the outcome of a slash command.
type slashResult struct {
	// Output is shown to the user.
	Output string
	// Quit ends the interactive session.
	Quit bool
}

// handleSlashCommand runs a slash command against the conversation. It
// reports false for ordinary input.
func handleSlashCommand(line string, conv *conversation) (bool, slashResult) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return false, slashResult{}
	}
	parts := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(parts) == 0 {
		return false, slashResult{}
	}
	command := strings.ToLower(parts[0])
	switch command {
	case "clear":
		conv.Clear()
		return true, slashResult{Output: "Conversation history cleared."}
	case "model":
		if len(parts) < 2 {
			names := make([]string, 0, len(config.Presets))
			for _, preset := range config.Presets {
				names = append(names, preset.Name)
			}
			return true, slashResult{Output: fmt.Sprintf("Current model: %s (presets: %s)", conv.Model(), strings.Join(names, ", "))}
		}
		conv.SetModel(parts[1])
		return true, slashResult{Output: fmt.Sprintf("Model set to %s.", parts[1])}
	case "help":
		return true, slashResult{Output: "Commands: /clear, /model [name], /help, /exit"}
	case "exit", "quit":
		return true, slashResult{Quit: true}
	default:
		return true, slashResult{Output: fmt.Sprintf("Unknown command: /%s", command)}
	}
}

// runInteractive is the line-mode loop used when no TUI is available.
func runInteractive(conv *conversation, in io.Reader, out io.Writer, errOut io.Writer, initial string) error {
	reader := bufio.NewScanner(in)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	pending := strings.TrimSpace(initial)

	for {
		line := pending
		pending = ""
		if line == "" {
			fmt.Fprint(out, "\n> ")
			if !reader.Scan() {
				break
			}
			line = strings.TrimSpace(reader.Text())
		}
		if line == "" {
			continue
		}
		if handled, result := handleSlashCommand(line, conv); handled {
			if result.Quit {
				return nil
			}
			fmt.Fprintln(out, result.Output)
			continue
		}

		ctx, stop := withInterrupt(context.Background(), func() {
			fmt.Fprintln(errOut, "\nCancelling...")
		})
		printer := newStreamPrinter(out, errOut)
		// The printer already reported any failure.
		_, _ = conv.Turn(ctx, line, printer.OnEvent)
		stop()
	}
	return reader.Err()
}

// withInterrupt builds a context that is cancelled on SIGINT.
func withInterrupt(parent context.Context, onInterrupt func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})

	go func() {
		select {
		case <-interrupt:
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-done:
			return
		}
	}()

	return ctx, func() {
		close(done)
		signal.Stop(interrupt)
		cancel()
	}
}

// formatInteractiveError normalizes common chat errors for TTY output.
func formatInteractiveError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *openai.APIError
	switch {
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, chat.ErrConfig):
		return fmt.Sprintf("Configuration problem: %v. Run `reasonchat doctor`.", err)
	case errors.Is(err, chat.ErrNoContent):
		return "The model returned an empty answer."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("API error (HTTP %d): %s", apiErr.StatusCode, apiErr.Body)
	default:
		return err.Error()
	}
}
