// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4,
// Anthropic Claude, or a local Ollama instance) and exposes a uniform interface
// for the Everloom turn pipeline to perform completions, count tokens, and
// inspect model capabilities without coupling to any specific SDK.
//
// The engine uses two completion modes through the same interface: free-text
// (no Tools) for prose generation, and structured output (Tools supplied) for
// assessments and state-update extraction. A model answering a structured
// request may return tool calls, plain text, or both; callers must handle all
// three shapes.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return it
	// directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Tools is the set of function/tool definitions offered to the model. The
	// model may choose to call one or more of them in its response. Callers
	// should check Capabilities().SupportsToolCalling before relying on this.
	Tools []ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0]. Lower
	// values produce more deterministic outputs. 0 means provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers without a dedicated system field
	// prepend it as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model. The caller
	// is responsible for interpreting them.
	ToolCalls []ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens the given message list would
	// consume in the model's context window. The result need not be exact but
	// should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is assumed to be constant for the
	// lifetime of the Provider instance.
	Capabilities() ModelCapabilities
}
