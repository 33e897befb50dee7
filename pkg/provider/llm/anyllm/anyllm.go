// Package anyllm implements llm.Provider on github.com/mozilla-ai/any-llm-go,
// giving every configured backend (OpenAI, Anthropic, Gemini, Ollama, Mistral)
// one adapter. Backends needing no key, like a local Ollama, work with only a
// base URL; the rest fall back to their conventional environment variables
// when no key option is given.
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Provider adapts one any-llm backend to llm.Provider.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for providerName ("openai", "anthropic", "gemini",
// "ollama" or "mistral") and model. opts are passed to the underlying backend
// (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL, ...).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := newBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// NewOpenAI creates an OpenAI-backed Provider.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// NewAnthropic creates an Anthropic-backed Provider.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewGemini creates a Google Gemini-backed Provider.
func NewGemini(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("gemini", model, opts...)
}

// NewOllama creates a Provider talking to a local Ollama server, by default
// at http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// NewMistral creates a Mistral-backed Provider.
func NewMistral(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("mistral", model, opts...)
}

func newBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral", providerName)
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &llm.CompletionResponse{Content: choice.Message.ContentString()}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// CountTokens implements llm.Provider with a ~4 chars/token heuristic plus a
// small per-message overhead.
// TODO: replace with a real tokenizer for accurate per-model counting.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message

	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	msg := anyllmlib.Message{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllmlib.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return msg
}

// capabilityRule maps a model-name prefix to its published limits. First match
// wins, so narrower prefixes come first.
type capabilityRule struct {
	prefix  string
	window  int
	maxOut  int
	noTools bool
}

var capabilityRules = []capabilityRule{
	{prefix: "gpt-4o", window: 128_000, maxOut: 16_384},
	{prefix: "gpt-4-turbo", window: 128_000, maxOut: 4_096},
	{prefix: "gpt-4", window: 8_192, maxOut: 4_096},
	{prefix: "o1-mini", window: 128_000, maxOut: 65_536, noTools: true},
	{prefix: "o1", window: 200_000, maxOut: 100_000},
	{prefix: "o3", window: 200_000, maxOut: 100_000},
	{prefix: "claude", window: 200_000, maxOut: 8_192},
	{prefix: "gemini-1.5-pro", window: 2_097_152, maxOut: 8_192},
	{prefix: "gemini", window: 1_048_576, maxOut: 8_192},
}

// modelCapabilities returns published limits for known model families and a
// conservative default otherwise.
func modelCapabilities(model string) llm.ModelCapabilities {
	caps := llm.ModelCapabilities{
		ContextWindow:       128_000,
		MaxOutputTokens:     4_096,
		SupportsToolCalling: true,
	}
	lower := strings.ToLower(model)
	for _, r := range capabilityRules {
		if strings.HasPrefix(lower, r.prefix) {
			caps.ContextWindow = r.window
			caps.MaxOutputTokens = r.maxOut
			caps.SupportsToolCalling = !r.noTools
			break
		}
	}
	return caps
}
