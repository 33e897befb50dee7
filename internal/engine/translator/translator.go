// Package translator performs the second model read of a turn: it converts
// the narration and player input into zero or more structured update
// requests for the applier.
package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emberwick/everloom/internal/envelope"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Input carries the turn context the translator reads from.
type Input struct {
	// Mode is "narrative" or "dialogue".
	Mode string

	// StateContext is a formatted snapshot of the world for the prompt.
	StateContext string

	// PlayerInput is what the player typed.
	PlayerInput string

	// GeneratedText is the narration or dialogue produced this turn.
	GeneratedText string
}

// Translator extracts structured update requests from a turn's prose.
type Translator struct {
	provider llm.Provider
	prompts  *prompts.Store
}

// New returns a Translator.
func New(provider llm.Provider, store *prompts.Store) *Translator {
	return &Translator{provider: provider, prompts: store}
}

// Translate returns the state updates implied by the turn. It never aborts
// the turn: provider failures and unparseable responses yield zero requests
// with a non-nil error for the caller to log, and individually invalid
// entries are dropped.
func (t *Translator) Translate(ctx context.Context, in Input) ([]Request, error) {
	prompt, err := t.prompts.Render(prompts.Translator, map[string]string{
		"game_mode":     in.Mode,
		"state_context": in.StateContext,
		"user_input":    in.PlayerInput,
		"llm_response":  in.GeneratedText,
	})
	if err != nil {
		slog.Warn("translator template unusable, using fallback", "error", err)
		prompt = fmt.Sprintf(
			"Extract game-state changes from this narration as tool calls or a JSON array of {\"request\": ...} objects.\n\nPlayer input: %s\n\nNarration: %s",
			in.PlayerInput, in.GeneratedText,
		)
	}

	req := llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	}
	if t.provider.Capabilities().SupportsToolCalling {
		req.Tools = requestTools()
	}

	resp, err := t.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("translator: completion: %w", err)
	}

	if len(resp.ToolCalls) > 0 {
		return t.fromToolCalls(resp.ToolCalls), nil
	}
	return t.fromText(resp.Content)
}

// fromToolCalls decodes each tool call into a Request, dropping invalid
// calls individually.
func (t *Translator) fromToolCalls(calls []llm.ToolCall) []Request {
	reqs := make([]Request, 0, len(calls))
	for _, call := range calls {
		req, err := decodeRequest(call.Name, []byte(call.Arguments))
		if err != nil {
			slog.Warn("dropping invalid update request", "tool", call.Name, "error", err)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// fromText parses a plain-text answer as a JSON array of objects carrying a
// "request" discriminator field.
func (t *Translator) fromText(content string) ([]Request, error) {
	var entries []json.RawMessage
	if err := envelope.Array(content, &entries); err != nil {
		if errors.Is(err, envelope.ErrNoEnvelope) {
			slog.Warn("translator response carried no update array", "content_length", len(content))
			return nil, nil
		}
		return nil, fmt.Errorf("translator: parse response: %w", err)
	}

	reqs := make([]Request, 0, len(entries))
	for i, raw := range entries {
		var head struct {
			Request string `json:"request"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.Request == "" {
			slog.Warn("dropping update entry without a request field", "index", i)
			continue
		}
		req, err := decodeRequest(head.Request, raw)
		if err != nil {
			slog.Warn("dropping invalid update request", "request", head.Request, "error", err)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
