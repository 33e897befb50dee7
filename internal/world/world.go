// Package world holds the explicit mutable state of a running game.
//
// State is the single authoritative snapshot the turn pipeline reads from and
// writes to. It is deliberately unsynchronised: the orchestrator serialises
// turns, and all mutation happens on the turn goroutine. Components that need
// a stable view during prompt assembly should copy the fields they use.
package world

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Stats are the player's core attributes. 10 is the baseline an average
// person has; action odds shift around that baseline.
type Stats struct {
	Strength int
	Charisma int
}

// DefaultStatValue is the neutral attribute score.
const DefaultStatValue = 10

// State is the explicit game state. All LLM-visible facts live here or in the
// character and location stores; prose history is kept by the content layer.
type State struct {
	// LocationID is the player's current location in the atlas.
	LocationID string

	// TimeOfDay is a free-form phase label ("morning", "dusk", ...).
	TimeOfDay string

	// Inventory is the player's ordered item list. Duplicates are allowed;
	// removal takes the first match.
	Inventory []string

	// PlayerStats drive the probabilistic action resolution.
	PlayerStats Stats

	// Flags are narrative facts set by the translator ("door_unlocked": true).
	Flags map[string]any

	// Objective is the player's current goal. Empty means none stated.
	Objective string

	// DialogueActive reports whether the game is in dialogue mode.
	// It is always mutated together with DialoguePartner.
	DialogueActive bool

	// DialoguePartner is the character id of the conversation partner.
	// Empty whenever DialogueActive is false.
	DialoguePartner string

	// Summary is the append-only digest of past events, grown by narrative
	// turns and conversation summaries.
	Summary string

	// LastAction is the player's most recent raw input, kept for prompt context.
	LastAction string

	// Turn counts completed turns.
	Turn int
}

// NewState returns a State positioned at startLocation with baseline stats
// and the given opening summary.
func NewState(startLocation, timeOfDay, openingSummary string) *State {
	return &State{
		LocationID:  startLocation,
		TimeOfDay:   timeOfDay,
		PlayerStats: Stats{Strength: DefaultStatValue, Charisma: DefaultStatValue},
		Flags:       make(map[string]any),
		Summary:     openingSummary,
	}
}

// AddItem appends item to the player inventory.
func (s *State) AddItem(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	s.Inventory = append(s.Inventory, item)
}

// RemoveItem removes the first inventory entry equal to item (case-insensitive).
// Removing an absent item is a no-op; it is logged because it usually means the
// translator hallucinated an item the player never had.
func (s *State) RemoveItem(item string) bool {
	for i, have := range s.Inventory {
		if strings.EqualFold(have, item) {
			s.Inventory = slices.Delete(s.Inventory, i, i+1)
			return true
		}
	}
	slog.Debug("inventory remove ignored, item not held", "item", item)
	return false
}

// HasItem reports whether the player holds item (case-insensitive).
func (s *State) HasItem(item string) bool {
	for _, have := range s.Inventory {
		if strings.EqualFold(have, item) {
			return true
		}
	}
	return false
}

// SetFlag sets or overwrites a narrative flag.
func (s *State) SetFlag(key string, value any) {
	if s.Flags == nil {
		s.Flags = make(map[string]any)
	}
	s.Flags[key] = value
}

// DeleteFlag removes a narrative flag. Deleting an absent flag is a no-op.
func (s *State) DeleteFlag(key string) {
	delete(s.Flags, key)
}

// EnterDialogue switches the game into dialogue mode with partnerID.
// The active flag and partner id always change together.
func (s *State) EnterDialogue(partnerID string) error {
	if partnerID == "" {
		return fmt.Errorf("world: dialogue partner id must not be empty")
	}
	if s.DialogueActive {
		return fmt.Errorf("world: already in dialogue with %s", s.DialoguePartner)
	}
	s.DialogueActive = true
	s.DialoguePartner = partnerID
	return nil
}

// LeaveDialogue returns the game to narrative mode and reports who the
// partner was. Calling it outside dialogue mode is a no-op.
func (s *State) LeaveDialogue() (partnerID string) {
	partnerID = s.DialoguePartner
	s.DialogueActive = false
	s.DialoguePartner = ""
	return partnerID
}

// AppendSummary grows the event digest. Fragments are separated by a blank
// line so downstream prompts keep them readable.
func (s *State) AppendSummary(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	if s.Summary == "" {
		s.Summary = fragment
		return
	}
	s.Summary += "\n\n" + fragment
}

// FlagSummary renders the narrative flags as "k: v; k: v" for prompt context.
// Returns "None" when no flags are set.
func (s *State) FlagSummary() string {
	if len(s.Flags) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(s.Flags))
	for k, v := range s.Flags {
		parts = append(parts, fmt.Sprintf("%s: %v", k, v))
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}
