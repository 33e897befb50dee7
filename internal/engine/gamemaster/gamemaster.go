// Package gamemaster implements the first pipeline stage: judging how
// difficult the player's attempted action is, given a snapshot of the world.
//
// The gamemaster never narrates and never mutates state. It produces a
// difficulty classification that the odds resolver converts into success or
// failure, plus one-line success and failure notes the narration quotes.
package gamemaster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emberwick/everloom/internal/engine/odds"
	"github.com/emberwick/everloom/internal/envelope"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/internal/world"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// PartnerContext describes the dialogue partner when the game is in dialogue
// mode. The assessment of social actions depends on it.
type PartnerContext struct {
	Name      string
	Inventory []string
	Trust     int
	Strength  int
	Charisma  int
	Statuses  []string
	Following bool
}

// Context is the state snapshot the gamemaster judges against. The
// orchestrator assembles it from the world, character, and atlas stores.
type Context struct {
	// Mode is "narrative" or "dialogue".
	Mode string

	LocationName      string
	TimeOfDay         string
	PlayerInventory   []string
	PlayerStats       world.Stats
	PresentCharacters []string
	AdjacentLocations []string

	// Partner is non-nil only in dialogue mode.
	Partner *PartnerContext

	// PlayerAction is the raw player input being judged.
	PlayerAction string
}

// Assessment is the gamemaster's verdict on one action. SuccessMessage and
// FailureMessage are short in-fiction notes the narration quotes once the
// dice have decided.
type Assessment struct {
	Difficulty     odds.Difficulty
	Reasoning      string
	SuccessMessage string
	FailureMessage string
}

// Message returns the note matching the resolved outcome.
func (a Assessment) Message(success bool) string {
	if success {
		return a.SuccessMessage
	}
	return a.FailureMessage
}

// assessmentPayload is the wire shape of the LLM response.
type assessmentPayload struct {
	Difficulty     string `json:"difficulty"`
	Reasoning      string `json:"reasoning"`
	SuccessMessage string `json:"success_message"`
	FailureMessage string `json:"failure_message"`
}

// Assessor judges player actions with one free-text completion per turn.
type Assessor struct {
	provider llm.Provider
	prompts  *prompts.Store
}

// NewAssessor returns an Assessor using the given provider and templates.
func NewAssessor(provider llm.Provider, store *prompts.Store) *Assessor {
	return &Assessor{provider: provider, prompts: store}
}

// Assess asks the model to classify snap.PlayerAction.
//
// The response must carry difficulty, success_message and failure_message.
// A provider failure, an unparseable response, or a response missing any of
// those keys is a failed assessment and is returned as an error — the
// orchestrator abandons the turn rather than guess at the stakes. An unknown
// difficulty value in an otherwise complete response still degrades to
// Medium with a logged warning.
func (a *Assessor) Assess(ctx context.Context, snap Context) (Assessment, error) {
	prompt, err := a.prompts.Render(prompts.Gamemaster, promptVars(snap))
	if err != nil {
		slog.Warn("gamemaster template unusable, using fallback prompt", "error", err)
		prompt = fmt.Sprintf(
			"Rate the difficulty of this action as Accept, Easy, Medium, Difficult or Impossible and answer with JSON {\"difficulty\": ..., \"reasoning\": ..., \"success_message\": ..., \"failure_message\": ...}. Action: %s",
			snap.PlayerAction)
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("gamemaster: assess action: %w", err)
	}

	var payload assessmentPayload
	if err := envelope.Object(resp.Content, &payload); err != nil {
		return Assessment{}, fmt.Errorf("gamemaster: parse assessment: %w", err)
	}
	if payload.Difficulty == "" || payload.SuccessMessage == "" || payload.FailureMessage == "" {
		return Assessment{}, fmt.Errorf("gamemaster: assessment missing required keys")
	}

	difficulty, known := odds.ParseDifficulty(payload.Difficulty)
	if !known {
		slog.Warn("gamemaster produced unknown difficulty, degrading to Medium", "difficulty", payload.Difficulty)
	}
	return Assessment{
		Difficulty:     difficulty,
		Reasoning:      payload.Reasoning,
		SuccessMessage: payload.SuccessMessage,
		FailureMessage: payload.FailureMessage,
	}, nil
}

// promptVars flattens the snapshot into template variables.
func promptVars(snap Context) map[string]string {
	partnerBlock := ""
	if snap.Partner != nil {
		p := snap.Partner
		statuses := "Normal"
		if len(p.Statuses) > 0 {
			statuses = strings.Join(p.Statuses, ", ")
		}
		partnerBlock = fmt.Sprintf(
			"Dialogue partner: %s\nPartner inventory: %s\nPartner trust toward player: %d\nPartner stats: strength %d, charisma %d\nPartner statuses: %s\nPartner following player: %s",
			p.Name, orNone(p.Inventory), p.Trust, p.Strength, p.Charisma, statuses, yesNo(p.Following))
	}

	return map[string]string{
		"game_mode":          snap.Mode,
		"location":           snap.LocationName,
		"time_of_day":        snap.TimeOfDay,
		"player_inventory":   orNone(snap.PlayerInventory),
		"player_stats":       fmt.Sprintf("strength %d, charisma %d", snap.PlayerStats.Strength, snap.PlayerStats.Charisma),
		"present_characters": orNone(snap.PresentCharacters),
		"adjacent_locations": orNone(snap.AdjacentLocations),
		"partner_context":    partnerBlock,
		"player_action":      snap.PlayerAction,
	}
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
