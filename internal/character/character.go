// Package character manages every non-player character in the game world:
// identity, archetype-driven generation, trust, temporary statuses, inventory,
// and per-character dialogue memory.
package character

// Archetype classifies a character's narrative role and drives generation.
type Archetype string

const (
	ArchetypeTownsperson  Archetype = "townsperson"
	ArchetypeCompanion    Archetype = "companion"
	ArchetypeFoe          Archetype = "foe"
	ArchetypeLoveInterest Archetype = "love_interest"
)

// IsValid reports whether a is a recognised archetype.
func (a Archetype) IsValid() bool {
	switch a {
	case ArchetypeTownsperson, ArchetypeCompanion, ArchetypeFoe, ArchetypeLoveInterest:
		return true
	}
	return false
}

// Trust bounds. Trust is always clamped into this range, never rejected.
const (
	TrustMin = -100
	TrustMax = 100
)

// Stats are a character's core attributes, mirroring the player's.
type Stats struct {
	Strength int
	Charisma int
}

// Status is a temporary condition on a character ("poisoned", "inspired").
// A nil Duration means the status holds until explicitly removed.
type Status struct {
	// Duration is the remaining number of turns, decremented once per turn.
	// The status is dropped when it reaches zero.
	Duration *int
}

// Utterance is one entry in a character's dialogue history.
type Utterance struct {
	// Speaker is "player", "gamemaster" (system-voice outcome notes), or a
	// character id.
	Speaker string

	// Text is what was said.
	Text string
}

// Character is a single NPC. Instances handed out by the Store are copies;
// mutate through Store methods so invariants (trust clamp, append-only
// history) hold.
type Character struct {
	ID          string
	Name        string
	Description string
	Archetype   Archetype
	Gender      string
	Traits      []string
	Location    string
	Inventory   []string
	Stats       Stats

	// Trust is the relationship score toward the player, in [TrustMin, TrustMax].
	Trust int

	// Statuses maps status name to its remaining duration.
	Statuses map[string]Status

	// Following reports whether the character travels with the player.
	Following bool

	// DialogueHistory is the append-only record of everything said in
	// conversations with this character.
	DialogueHistory []Utterance
}

// TrustBand returns a coarse description of the trust score, used by dialogue
// prompts: Very High (>50), Positive (>10), Very Low (<-50), Negative (<-10),
// otherwise Neutral.
func (c *Character) TrustBand() string {
	switch {
	case c.Trust > 50:
		return "Very High"
	case c.Trust > 10:
		return "Positive"
	case c.Trust < -50:
		return "Very Low"
	case c.Trust < -10:
		return "Negative"
	default:
		return "Neutral"
	}
}

// clone returns a deep copy so callers cannot mutate store internals.
func (c *Character) clone() *Character {
	cp := *c
	cp.Traits = append([]string(nil), c.Traits...)
	cp.Inventory = append([]string(nil), c.Inventory...)
	cp.DialogueHistory = append([]Utterance(nil), c.DialogueHistory...)
	cp.Statuses = make(map[string]Status, len(c.Statuses))
	for name, st := range c.Statuses {
		if st.Duration != nil {
			d := *st.Duration
			st.Duration = &d
		}
		cp.Statuses[name] = st
	}
	return &cp
}
