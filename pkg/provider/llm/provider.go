// Package llm defines the language-model provider interface used by the skill
// router's fallback stage. Completions are batch-mode: the assistant speaks
// whole answers, not token streams.
package llm

import "context"

// Message is a single entry in the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	// SystemPrompt is prepended as the system message when non-empty.
	SystemPrompt string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// Temperature, when non-zero, overrides the backend default.
	Temperature float64

	// MaxTokens, when positive, caps the completion length.
	MaxTokens int
}

// CompletionResponse is the model's answer.
type CompletionResponse struct {
	// Content is the completion text.
	Content string
}

// Provider generates completions. Implementations must be safe for concurrent
// use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
