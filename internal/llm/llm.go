// Package llm talks to language models and to the guardrail checks that wrap them.
package llm

import (
	"context"
	"strings"
)

// RefusalMessage is what a guardrail (or a well-prompted model) answers instead of SQL.
const RefusalMessage = "I'm sorry, I can't respond to that."

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer turns a conversation into the model's next reply.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Direction tells a filter whether it is looking at the user's input or the model's output.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Verdict is a filter decision. A refusal is not an error.
type Verdict struct {
	Refused bool
	Reason  string
}

// Filter inspects one side of an exchange. Errors mean the check itself failed.
type Filter interface {
	Check(ctx context.Context, dir Direction, messages []Message) (Verdict, error)
}

// IsRefusal reports whether text is the refusal sentinel.
func IsRefusal(text string) bool {
	return strings.TrimSpace(text) == RefusalMessage
}

func lastContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
