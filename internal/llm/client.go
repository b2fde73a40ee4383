// Package llm defines the language-model gateway used by the infra agent.
package llm

import (
	"context"
	"time"
)

// Role represents a message sender role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options are the fixed model parameters sent with every completion.
type Options struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultOptions mirrors the settings the agent was tuned with.
func DefaultOptions() Options {
	return Options{
		Model:       "qwen-plus",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
	}
}

// Completer sends a conversation to a remote completion service and returns
// the raw text of the first choice.
type Completer interface {
	// Complete returns the model reply or the transport/service error.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Provider returns the provider identifier, used for logs and metrics.
	Provider() string
}
