package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Summariser condenses a finished conversation into a couple of sentences
// for the world's narrative context.
type Summariser struct {
	provider llm.Provider
	prompts  *prompts.Store
}

// NewSummariser returns a Summariser.
func NewSummariser(provider llm.Provider, store *prompts.Store) *Summariser {
	return &Summariser{provider: provider, prompts: store}
}

// Summarise compresses history into a short past-tense summary. The returned
// text is always usable; a non-nil error marks it as a degraded fallback.
// An empty history yields a fixed note and no provider call.
func (s *Summariser) Summarise(ctx context.Context, history []character.Utterance, nameOf func(string) string) (string, error) {
	if len(history) == 0 {
		return "(No conversation took place.)", nil
	}

	prompt, err := s.prompts.Render(prompts.DialogueSummary, map[string]string{
		"dialogue_history": formatHistory(history, nameOf),
	})
	if err != nil {
		slog.Warn("summary template unusable, using fallback", "error", err)
		prompt = "Summarise this conversation in two sentences:\n" + formatHistory(history, nameOf)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		slog.Warn("conversation summarisation failed, degrading", "error", err)
		return "(The details of the conversation are hazy.)", err
	}
	return resp.Content, nil
}

// SummaryFragment renders the note appended to the world's event digest when
// a conversation with name ends.
func SummaryFragment(name, summary string) string {
	return fmt.Sprintf("[Summary of conversation with %s: %s]", name, summary)
}
