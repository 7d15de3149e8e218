package chat

import (
	"regexp"
	"strings"
)

// thinkPattern matches one complete thinking segment, non-greedy, across lines.
var thinkPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// ExtractThinking splits text into the contents of every complete
// <think>…</think> segment and the text left once they are removed. found
// is false when no complete segment exists yet.
func ExtractThinking(text string) (reasoning string, response string, found bool) {
	matches := thinkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", text, false
	}
	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		parts = append(parts, strings.TrimSpace(match[1]))
	}
	reasoning = strings.TrimSpace(strings.Join(parts, "\n"))
	response = strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
	return reasoning, response, true
}
