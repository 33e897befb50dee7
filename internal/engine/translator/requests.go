package translator

import (
	"encoding/json"
	"fmt"
)

// Request is one structured state update extracted from a turn. The concrete
// type determines what the applier does with it.
type Request interface {
	// Name is the wire name of the request kind.
	Name() string
}

// CompanionUpdate adjusts one companion's inventory inside an
// UpdateGameState request.
type CompanionUpdate struct {
	InventoryAdd    []string `json:"inventory_add,omitempty"`
	InventoryRemove []string `json:"inventory_remove,omitempty"`
}

// UpdateGameState is the broad world mutation: movement, time, inventory,
// narrative flags, companion inventories, and the current objective. Empty
// fields mean "no change".
type UpdateGameState struct {
	Location         string                     `json:"location,omitempty"`
	TimeOfDay        string                     `json:"time_of_day,omitempty"`
	InventoryAdd     []string                   `json:"player_inventory_add,omitempty"`
	InventoryRemove  []string                   `json:"player_inventory_remove,omitempty"`
	FlagsSet         map[string]any             `json:"narrative_flags_set,omitempty"`
	FlagsDelete      []string                   `json:"narrative_flags_delete,omitempty"`
	CompanionUpdates map[string]CompanionUpdate `json:"companion_updates,omitempty"`
	Objective        string                     `json:"current_objective,omitempty"`
}

func (UpdateGameState) Name() string { return "update_game_state" }

// StartDialogue switches the game into conversation mode with a character.
type StartDialogue struct {
	CharacterID string `json:"character_id"`
}

func (StartDialogue) Name() string { return "start_dialogue" }

// EndDialogue ends the active conversation.
type EndDialogue struct{}

func (EndDialogue) Name() string { return "end_dialogue" }

// CreateCharacter spawns a new character from an archetype.
type CreateCharacter struct {
	Archetype string `json:"archetype"`
	Location  string `json:"location,omitempty"`
	NameHint  string `json:"name_hint,omitempty"`
}

func (CreateCharacter) Name() string { return "create_character" }

// UpdateRelationship shifts a character's trust toward the player.
type UpdateRelationship struct {
	CharacterID string `json:"character_id"`
	TrustDelta  int    `json:"trust_delta"`
}

func (UpdateRelationship) Name() string { return "update_relationship" }

// ExchangeItem moves an item between the player and a character, or between
// two characters. "player" names the player on either side.
type ExchangeItem struct {
	Giver    string `json:"giver"`
	Receiver string `json:"receiver"`
	Item     string `json:"item"`
}

func (ExchangeItem) Name() string { return "exchange_item" }

// SetFollowStatus flips whether the active dialogue partner travels with the
// player. Following is a pointer so a request omitting the value is rejected
// rather than read as false.
type SetFollowStatus struct {
	CharacterID string `json:"character_id"`
	Following   *bool  `json:"following"`
}

func (SetFollowStatus) Name() string { return "set_follow_status" }

// SetStatus places a temporary or permanent status on a character.
// Duration is in turns; nil means permanent until removed.
type SetStatus struct {
	CharacterID string `json:"character_id"`
	Status      string `json:"status"`
	Duration    *int   `json:"duration,omitempty"`
}

func (SetStatus) Name() string { return "set_status" }

// MoveCharacter relocates a character.
type MoveCharacter struct {
	CharacterID string `json:"character_id"`
	Location    string `json:"location"`
}

func (MoveCharacter) Name() string { return "move_character" }

// decodeRequest builds the concrete Request for a wire name from its raw
// JSON arguments.
func decodeRequest(name string, raw []byte) (Request, error) {
	var req Request
	switch name {
	case "update_game_state":
		req = &UpdateGameState{}
	case "start_dialogue":
		req = &StartDialogue{}
	case "end_dialogue":
		req = &EndDialogue{}
	case "create_character":
		req = &CreateCharacter{}
	case "update_relationship":
		req = &UpdateRelationship{}
	case "exchange_item":
		req = &ExchangeItem{}
	case "set_follow_status":
		req = &SetFollowStatus{}
	case "set_status":
		req = &SetStatus{}
	case "move_character":
		req = &MoveCharacter{}
	default:
		return nil, fmt.Errorf("translator: unknown request %q", name)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, fmt.Errorf("translator: decode %s: %w", name, err)
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// validateRequest rejects requests missing their required fields.
func validateRequest(req Request) error {
	missing := func(field string) error {
		return fmt.Errorf("translator: %s missing %s", req.Name(), field)
	}
	switch r := req.(type) {
	case *StartDialogue:
		if r.CharacterID == "" {
			return missing("character_id")
		}
	case *CreateCharacter:
		if r.Archetype == "" {
			return missing("archetype")
		}
	case *UpdateRelationship:
		if r.CharacterID == "" {
			return missing("character_id")
		}
	case *ExchangeItem:
		if r.Giver == "" || r.Receiver == "" || r.Item == "" {
			return missing("giver/receiver/item")
		}
	case *SetFollowStatus:
		if r.CharacterID == "" {
			return missing("character_id")
		}
		if r.Following == nil {
			return missing("following")
		}
	case *SetStatus:
		if r.CharacterID == "" || r.Status == "" {
			return missing("character_id/status")
		}
	case *MoveCharacter:
		if r.CharacterID == "" || r.Location == "" {
			return missing("character_id/location")
		}
	}
	return nil
}
