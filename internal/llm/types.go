// Package llm talks to hosted language models. Backends share one narrow
// interface: a single non-streaming completion.
package llm

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned when a completion is requested without a key.
var ErrMissingAPIKey = errors.New("missing api key")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is a provider-neutral completion request.
type Completion struct {
	APIKey      string
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Backend produces a completion for a prompt.
type Backend interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// chatRequest is the OpenAI-compatible chat completion request body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func messagesFor(c Completion) []Message {
	var msgs []Message
	if c.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: c.System})
	}
	return append(msgs, Message{Role: "user", Content: c.Prompt})
}
