package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/streamjson"
)

// runPrintMode answers one prompt and writes it in the requested format.
func runPrintMode(ctx context.Context, conv *conversation, prompt string, format string, out io.Writer, errOut io.Writer) error {
	switch format {
	case "", "text":
		printer := newStreamPrinter(out, errOut)
		_, err := conv.Turn(ctx, prompt, printer.OnEvent)
		return err
	case "json":
		result, err := conv.Turn(ctx, prompt, nil)
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]any{
			"session_id": conv.sessionID,
			"model":      conv.Model(),
			"reasoning":  result.Reasoning,
			"response":   result.Response,
		})
	case "stream-json":
		return runPrintModeStreamJSON(ctx, conv, prompt, out)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// runPrintModeStreamJSON writes an init line, the prompt, every stream
// event, and a closing result line.
func runPrintModeStreamJSON(ctx context.Context, conv *conversation, prompt string, out io.Writer) error {
	writer := streamjson.NewWriter(out)
	if err := writer.Write(streamjson.BuildSystemInit(conv.sessionID, conv.Model())); err != nil {
		return err
	}
	if err := writer.Write(streamjson.BuildUserEvent(conv.sessionID, prompt)); err != nil {
		return err
	}

	started := time.Now()
	var writeErr error
	_, err := conv.Turn(ctx, prompt, func(event chat.StreamEvent) {
		turns := len(conv.History())/2 + 1
		for _, line := range streamjson.BuildEvents(event, conv.sessionID, time.Since(started), turns) {
			if writeErr != nil {
				return
			}
			writeErr = writer.Write(line)
		}
	})
	if writeErr != nil {
		return writeErr
	}
	return err
}

func writeJSON(out io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
