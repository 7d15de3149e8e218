package chat

import (
	"strings"

	"github.com/reasonchat/reasonchat/internal/llm/openai"
)

// BuildMessages flattens a conversation into the wire format: the system
// prompt first, then history, then userInput. Assistant turns that kept
// their reasoning are sent with it so the model sees its own prior thinking.
func BuildMessages(systemPrompt string, history []Message, userInput string) []openai.Message {
	messages := make([]openai.Message, 0, len(history)+2)
	messages = append(messages, openai.Message{Role: string(RoleSystem), Content: systemPrompt})
	for _, message := range history {
		messages = append(messages, openai.Message{
			Role:    string(message.Role),
			Content: flattenContent(message.Content),
		})
	}
	return append(messages, openai.Message{Role: string(RoleUser), Content: userInput})
}

// flattenContent renders content as plain text.
func flattenContent(content Content) string {
	switch typed := content.(type) {
	case PlainText:
		return string(typed)
	case ReasoningAnswer:
		if strings.TrimSpace(typed.Reasoning) == "" {
			return typed.Answer
		}
		var builder strings.Builder
		builder.WriteString("Reasoning:\n")
		builder.WriteString(typed.Reasoning)
		builder.WriteString("\n\nAnswer:\n")
		builder.WriteString(typed.Answer)
		return builder.String()
	default:
		return ""
	}
}
