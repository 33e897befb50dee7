package content

import (
	"context"
	"log/slog"
	"sync"

	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// degradedNarration is returned when the provider cannot produce prose.
const degradedNarration = "The world holds its breath for a moment, and nothing more happens. Perhaps try again."

// NarrativeContext carries everything the narrator needs for one turn.
type NarrativeContext struct {
	LocationName      string
	CharactersPresent []string
	TimeOfDay         string
	KeyInformation    string
	RecentEvents      string
	Objective         string
	LastPlayerAction  string
	OutcomeMessage    string
	Universe          string
}

// Narrator produces narrative-mode prose. It keeps a sliding window of the
// recent exchange so consecutive turns stay coherent without resending the
// whole story.
type Narrator struct {
	provider   llm.Provider
	prompts    *prompts.Store
	maxHistory int

	mu      sync.Mutex
	history []llm.Message
}

// NewNarrator returns a Narrator keeping at most maxHistory messages of
// rolling context. maxHistory <= 0 selects the default of 20.
func NewNarrator(provider llm.Provider, store *prompts.Store, maxHistory int) *Narrator {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &Narrator{provider: provider, prompts: store, maxHistory: maxHistory}
}

// Narrate generates the next piece of story. The returned text is always
// printable; a non-nil error marks it as a degraded fallback.
func (n *Narrator) Narrate(ctx context.Context, nc NarrativeContext) (string, error) {
	turnPrompt, err := n.prompts.Render(prompts.NarrativeTurn, map[string]string{
		"player_location":       nc.LocationName,
		"characters_present":    joinOr(nc.CharactersPresent, "None"),
		"time_of_day":           nc.TimeOfDay,
		"key_information":       nc.KeyInformation,
		"recent_events_summary": nc.RecentEvents,
		"current_objective":     orNoneStated(nc.Objective),
		"last_player_action":    nc.LastPlayerAction,
		"action_outcome":        nc.OutcomeMessage,
	})
	if err != nil {
		slog.Warn("narrative turn template unusable, using fallback", "error", err)
		turnPrompt = "The player attempted: " + nc.LastPlayerAction + "\nOutcome: " + nc.OutcomeMessage + "\nContinue the story."
	}

	systemPrompt, err := n.prompts.Render(prompts.NarrativeSystem, map[string]string{
		"universe": nc.Universe,
	})
	if err != nil {
		slog.Warn("narrative system template unusable, using fallback", "error", err)
		systemPrompt = "You are the narrator of an interactive novel. Write vivid second-person prose."
	}

	n.mu.Lock()
	messages := append(append([]llm.Message(nil), n.history...), llm.Message{Role: "user", Content: turnPrompt})
	n.mu.Unlock()

	resp, err := n.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Temperature:  0.9,
	})
	if err != nil {
		slog.Warn("narration failed, degrading", "error", err)
		return degradedNarration, err
	}

	n.mu.Lock()
	n.history = append(n.history,
		llm.Message{Role: "user", Content: turnPrompt},
		llm.Message{Role: "assistant", Content: resp.Content},
	)
	// Sliding window: drop the oldest messages beyond the cap.
	if excess := len(n.history) - n.maxHistory; excess > 0 {
		n.history = append([]llm.Message(nil), n.history[excess:]...)
	}
	n.mu.Unlock()

	return resp.Content, nil
}

// HistoryLen reports the current size of the rolling window.
func (n *Narrator) HistoryLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.history)
}

func orNoneStated(s string) string {
	if s == "" {
		return "None stated."
	}
	return s
}
