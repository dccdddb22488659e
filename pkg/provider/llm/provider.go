// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, ...) and exposes a single blocking completion call. The
// classification and content-normalization stages only ever need one short
// structured answer per command, so there is no streaming surface.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is injected before Messages as a "system" turn.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is the user turn
	// that drives the response.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int

	// ResponseFormat optionally requests structured output.
	ResponseFormat ResponseFormat
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns promptly with ctx.Err() when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}
