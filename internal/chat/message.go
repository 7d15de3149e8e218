// Package chat turns a prompt and prior turns into a lazy sequence of
// reasoning and response events read from an OpenAI-compatible stream.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is the body of a message: PlainText or ReasoningAnswer.
type Content interface {
	isContent()
}

// PlainText is ordinary message text.
type PlainText string

func (PlainText) isContent() {}

// ReasoningAnswer is an assistant turn that kept its thinking trace.
type ReasoningAnswer struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
}

func (ReasoningAnswer) isContent() {}

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content Content
}

// System returns a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Content: PlainText(text)}
}

// User returns a user message.
func User(text string) Message {
	return Message{Role: RoleUser, Content: PlainText(text)}
}

// Assistant returns a plain assistant message.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: PlainText(text)}
}

// AssistantWithReasoning returns an assistant message carrying both parts.
func AssistantWithReasoning(reasoning string, answer string) Message {
	return Message{Role: RoleAssistant, Content: ReasoningAnswer{Reasoning: reasoning, Answer: answer}}
}

// Validate reports messages that break the role/content rules.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
	if _, ok := m.Content.(ReasoningAnswer); ok && m.Role != RoleAssistant {
		return fmt.Errorf("%s message cannot carry reasoning", m.Role)
	}
	return nil
}

// Text returns the display text: the answer for a ReasoningAnswer.
func (m Message) Text() string {
	switch content := m.Content.(type) {
	case PlainText:
		return string(content)
	case ReasoningAnswer:
		return content.Answer
	default:
		return ""
	}
}

// Reasoning returns the stored thinking trace, if any.
func (m Message) Reasoning() string {
	if content, ok := m.Content.(ReasoningAnswer); ok {
		return content.Reasoning
	}
	return ""
}

// messageJSON is the persisted form. Content is a string or an object with
// reasoning and answer keys.
type messageJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes content as a string or a reasoning/answer object.
func (m Message) MarshalJSON() ([]byte, error) {
	var content any
	switch typed := m.Content.(type) {
	case ReasoningAnswer:
		content = typed
	case PlainText:
		content = string(typed)
	case nil:
		content = ""
	default:
		return nil, fmt.Errorf("unsupported content type %T", m.Content)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Role: m.Role, Content: raw})
}

// UnmarshalJSON accepts either content form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var decoded messageJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	m.Role = decoded.Role
	if len(decoded.Content) == 0 || string(decoded.Content) == "null" {
		m.Content = PlainText("")
		return nil
	}
	var text string
	if err := json.Unmarshal(decoded.Content, &text); err == nil {
		m.Content = PlainText(text)
		return nil
	}
	var pair ReasoningAnswer
	if err := json.Unmarshal(decoded.Content, &pair); err != nil {
		return errors.New("message content must be a string or a reasoning/answer object")
	}
	m.Content = pair
	return nil
}
