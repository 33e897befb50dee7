// Package odds turns a gamemaster difficulty assessment into a resolved
// success or failure.
//
// Resolution is probabilistic but fully deterministic given a seeded random
// source: base odds come from the difficulty, shifted by the player's
// physical or social attributes depending on what kind of action the input
// looks like. Certain outcomes (Accept, Impossible) never touch the RNG.
package odds

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Difficulty is the gamemaster's judgement of an attempted action.
type Difficulty string

const (
	Accept     Difficulty = "Accept"
	Easy       Difficulty = "Easy"
	Medium     Difficulty = "Medium"
	Difficult  Difficulty = "Difficult"
	Impossible Difficulty = "Impossible"
)

// baseOdds maps each difficulty to its base success probability.
var baseOdds = map[Difficulty]float64{
	Accept:     1.0,
	Easy:       0.75,
	Medium:     0.50,
	Difficult:  0.25,
	Impossible: 0.0,
}

// IsValid reports whether d is a recognised difficulty.
func (d Difficulty) IsValid() bool {
	_, ok := baseOdds[d]
	return ok
}

// ParseDifficulty maps a model-produced difficulty string onto a Difficulty,
// tolerating case differences. Unknown values fall back to Medium — a bad
// assessment must not abort the turn.
func ParseDifficulty(s string) (Difficulty, bool) {
	for d := range baseOdds {
		if strings.EqualFold(string(d), strings.TrimSpace(s)) {
			return d, true
		}
	}
	return Medium, false
}

// ActionType classifies what kind of attempt the player input looks like.
type ActionType string

const (
	ActionPhysical ActionType = "physical"
	ActionSocial   ActionType = "social"
)

var (
	physicalVerbs = []string{
		"attack", "hit", "strike", "push", "shove", "break", "smash",
		"climb", "lift", "grab", "throw", "kick", "wrestle", "force",
	}
	socialVerbs = []string{
		"persuade", "convince", "ask", "talk", "intimidate", "lie",
		"trick", "charm", "negotiate", "plead", "threaten", "flatter",
	}
)

// ClassifyAction decides whether input is a physical or a social attempt.
// The game mode sets the default: during a conversation everything is social
// unless a physical verb appears, and in open narration everything is
// physical unless a social verb appears.
func ClassifyAction(input string, inDialogue bool) ActionType {
	if inDialogue {
		if containsVerb(input, physicalVerbs) {
			return ActionPhysical
		}
		return ActionSocial
	}
	if containsVerb(input, socialVerbs) {
		return ActionSocial
	}
	return ActionPhysical
}

func containsVerb(input string, verbs []string) bool {
	for _, word := range strings.Fields(strings.ToLower(input)) {
		word = strings.Trim(word, ".,!?'\"")
		for _, v := range verbs {
			if word == v {
				return true
			}
		}
	}
	return false
}

// Attributes carries the numbers that shift the base odds.
type Attributes struct {
	// Strength shifts physical attempts: ±5% per point from the baseline 10.
	Strength int

	// Charisma shifts social attempts: ±3% per point from the baseline 10.
	Charisma int

	// InDialogue marks that a conversation is active. It makes social the
	// default classification and enables the charisma and trust modifiers;
	// outside dialogue a social attempt runs on base odds alone.
	InDialogue bool

	// PartnerTrust is the dialogue partner's trust score, contributing
	// trust/10 × 1% to social attempts while in dialogue.
	PartnerTrust int
}

// Outcome is the resolved result of one attempted action.
type Outcome struct {
	Success     bool
	Difficulty  Difficulty
	ActionType  ActionType
	Probability float64

	// Roll is the RNG draw compared against Probability. Negative when no
	// roll happened (Accept and Impossible).
	Roll float64
}

// Message renders a one-line outcome note for downstream prompts, e.g.
// "The attempt succeeded (Medium, 55% chance)."
func (o Outcome) Message() string {
	verdict := "failed"
	if o.Success {
		verdict = "succeeded"
	}
	return fmt.Sprintf("The attempt %s (%s, %.0f%% chance).", verdict, o.Difficulty, o.Probability*100)
}

// Resolver resolves attempts with an injected random source.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver returns a Resolver drawing from rng. Tests pass a fixed seed.
func NewResolver(rng *rand.Rand) *Resolver {
	return &Resolver{rng: rng}
}

// Resolve computes the final success probability for input at the given
// difficulty and draws against it.
//
// Accept always succeeds and Impossible always fails without consuming a
// random draw, so certainty stays certain regardless of modifiers.
func (r *Resolver) Resolve(input string, d Difficulty, attrs Attributes) Outcome {
	if !d.IsValid() {
		d = Medium
	}
	action := ClassifyAction(input, attrs.InDialogue)

	p := baseOdds[d]
	switch action {
	case ActionPhysical:
		p += float64(attrs.Strength-10) * 0.05
	case ActionSocial:
		if attrs.InDialogue {
			p += float64(attrs.Charisma-10) * 0.03
			p += float64(attrs.PartnerTrust) / 10 * 0.01
		}
	}
	p = min(max(p, 0), 1)

	out := Outcome{
		Difficulty:  d,
		ActionType:  action,
		Probability: p,
		Roll:        -1,
	}

	switch d {
	case Accept:
		out.Success = true
		out.Probability = 1
		return out
	case Impossible:
		out.Success = false
		out.Probability = 0
		return out
	}

	out.Roll = r.rng.Float64()
	out.Success = out.Roll < p
	return out
}
