// Package llm defines the Provider interface for Large Language Model
// backends used by the arbitration stage.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4o or
// an OpenAI-compatible local server) behind a uniform completion interface
// so the arbiter stays decoupled from any specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is one turn of the conversation sent to the model.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a
// response. At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system channel should
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Arbitration
	// wants near-deterministic output, so callers pass small values.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the text of the reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
