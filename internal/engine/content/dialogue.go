package content

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// SpeakRequest carries everything the dialogue engine needs for one reply.
type SpeakRequest struct {
	// Partner is a snapshot of the conversation partner.
	Partner *character.Character

	// LocationName and TimeOfDay anchor the scene.
	LocationName string
	TimeOfDay    string

	// RecentEvents is the world's narrative context summary.
	RecentEvents string

	// PlayerInput is what the player just said or tried.
	PlayerInput string

	// OutcomeMessage, when non-empty, is the resolved action outcome injected
	// into the conversation as a system-voice note.
	OutcomeMessage string

	// NameOf resolves character ids to display names for transcript
	// formatting. May be nil.
	NameOf func(string) string
}

// Dialogue produces in-character speech for the active conversation partner.
type Dialogue struct {
	provider llm.Provider
	prompts  *prompts.Store
}

// NewDialogue returns a Dialogue engine.
func NewDialogue(provider llm.Provider, store *prompts.Store) *Dialogue {
	return &Dialogue{provider: provider, prompts: store}
}

// Speak generates the partner's reply. The returned text is always
// printable; a non-nil error marks it as a degraded fallback.
//
// The partner's persistent history is not mutated here: the caller appends
// the player input, the outcome note, and the generated reply to the store
// after the turn commits.
func (d *Dialogue) Speak(ctx context.Context, req SpeakRequest) (string, error) {
	partner := req.Partner

	// Per-turn working copy of the history: persistent entries, then the
	// player's new line, then the resolved outcome.
	working := append([]character.Utterance(nil), partner.DialogueHistory...)
	working = append(working, character.Utterance{Speaker: SpeakerPlayer, Text: req.PlayerInput})
	if req.OutcomeMessage != "" {
		working = append(working, character.Utterance{
			Speaker: SpeakerGamemaster,
			Text:    fmt.Sprintf("[Action Outcome: %s]", req.OutcomeMessage),
		})
	}

	system := d.systemPrompt(req, working)

	// Replay the conversation as alternating API roles: the player and the
	// system-voice outcome notes speak as "user", the character as
	// "assistant".
	messages := make([]llm.Message, 0, len(working))
	for _, u := range working {
		role := "assistant"
		if u.Speaker == SpeakerPlayer || u.Speaker == SpeakerGamemaster {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: u.Text})
	}

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  0.8,
	})
	if err != nil {
		slog.Warn("dialogue generation failed, degrading", "character", partner.ID, "error", err)
		return fmt.Sprintf("%s looks at you in silence.", partner.Name), err
	}
	return resp.Content, nil
}

// systemPrompt renders the dialogue template and appends the trust-keyed
// tone directive.
func (d *Dialogue) systemPrompt(req SpeakRequest, working []character.Utterance) string {
	partner := req.Partner

	statuses := make([]string, 0, len(partner.Statuses))
	for name, st := range partner.Statuses {
		if st.Duration != nil {
			statuses = append(statuses, fmt.Sprintf("%s (%d turns)", name, *st.Duration))
		} else {
			statuses = append(statuses, name)
		}
	}

	system, err := d.prompts.Render(prompts.Dialogue, map[string]string{
		"character_name":      partner.Name,
		"character_id":        partner.ID,
		"trust_score":         strconv.Itoa(partner.Trust),
		"trust_band":          partner.TrustBand(),
		"active_statuses":     joinOr(statuses, "Normal"),
		"character_inventory": joinOr(partner.Inventory, "Nothing"),
		"follow_status":       followString(partner.Following),
		"location":            req.LocationName,
		"time_of_day":         req.TimeOfDay,
		"narrative_context":   req.RecentEvents,
		"dialogue_history":    formatHistory(working, req.NameOf),
	})
	if err != nil {
		slog.Warn("dialogue template unusable, using fallback", "error", err)
		system = fmt.Sprintf("You are %s. Respond naturally and stay in character.", partner.Name)
	}

	return system + "\n\n## Tone Directive:\n" + toneDirective(partner.Trust)
}

// toneDirective keys the character's emotional register on trust:
// below -20 hostile, above 50 warm, neutral otherwise.
func toneDirective(trust int) string {
	switch {
	case trust < -20:
		return "Your tone is suspicious, edgy, or even hostile. Don't be afraid to show conflict."
	case trust > 50:
		return "Your tone is warm and friendly, but you can still be bold or direct if the player challenges you."
	default:
		return "You are neutral or mildly wary. You can become edgy or welcoming depending on the player's words."
	}
}

func followString(following bool) string {
	if following {
		return "Yes"
	}
	return "No"
}
