package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractThinking(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		reasoning string
		response  string
		found     bool
	}{
		{name: "single", input: "<think>A</think>B", reasoning: "A", response: "B", found: true},
		{name: "multiline", input: "<think>\nstep 1\nstep 2\n</think>\n\nDone.", reasoning: "step 1\nstep 2", response: "Done.", found: true},
		{name: "multiple", input: "<think>a</think>x<think>b</think>y", reasoning: "a\nb", response: "xy", found: true},
		{name: "unclosed", input: "<think>still going", reasoning: "", response: "<think>still going", found: false},
		{name: "none", input: "just text", reasoning: "", response: "just text", found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reasoning, response, found := ExtractThinking(tc.input)
			assert.Equal(t, tc.reasoning, reasoning)
			assert.Equal(t, tc.response, response)
			assert.Equal(t, tc.found, found)
		})
	}
}
