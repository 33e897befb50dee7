// Package openai implements llm.Provider on the official OpenAI SDK. It is
// the preferred backend when an explicit OpenAI API key is configured, since
// the native client supports per-request options the generic adapter lacks.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Provider implements llm.Provider using the OpenAI chat completions API.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

type settings struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option configures optional Provider behaviour.
type Option func(*settings)

// WithBaseURL points the client at a compatible non-default endpoint, e.g. a
// proxy or an Azure deployment.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(s *settings) { s.organization = org }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// New constructs a Provider for the given model. The API key and model are
// required.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	var s settings
	for _, o := range opts {
		o(&s)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(s.organization))
	}
	if s.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &llm.CompletionResponse{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
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
// TODO: replace with tiktoken-go for accurate per-model token counting.
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
	{prefix: "gpt-3.5-turbo", window: 16_385, maxOut: 4_096},
	{prefix: "o1-mini", window: 128_000, maxOut: 65_536, noTools: true},
	{prefix: "o1", window: 200_000, maxOut: 100_000},
	{prefix: "o3", window: 200_000, maxOut: 100_000},
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

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return oai.SystemMessage(m.Content), nil

	case "user":
		return oai.UserMessage(m.Content), nil

	case "assistant":
		asst := oai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = oai.String(m.Content)
		}
		if m.Name != "" {
			asst.Name = oai.String(m.Name)
		}
		for _, tc := range m.ToolCalls {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil

	case "tool":
		return oai.ToolMessage(m.Content, m.ToolCallID), nil

	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}
