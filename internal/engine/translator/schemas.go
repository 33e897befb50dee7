package translator

import "github.com/emberwick/everloom/pkg/provider/llm"

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func stringList(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// requestTools declares every update request as a callable tool so the model
// can emit structured state changes instead of prose.
func requestTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "update_game_state",
			Description: "Apply broad world changes: movement, time of day, inventories, narrative flags, and the current objective. Only include fields that changed.",
			Parameters: objectSchema(map[string]any{
				"location":                stringProp("New player location id, if the player moved."),
				"time_of_day":             stringProp("New time of day, e.g. morning, noon, evening, night."),
				"player_inventory_add":    stringList("Items the player gained."),
				"player_inventory_remove": stringList("Items the player lost or used."),
				"narrative_flags_set": map[string]any{
					"type":        "object",
					"description": "Story flags to set or overwrite, as key/value pairs.",
				},
				"narrative_flags_delete": stringList("Story flags that no longer apply."),
				"companion_updates": map[string]any{
					"type":        "object",
					"description": "Per-companion inventory changes keyed by character id, each with inventory_add and inventory_remove string arrays.",
				},
				"current_objective": stringProp("The player's new objective, if it changed."),
			}),
		},
		{
			Name:        "start_dialogue",
			Description: "Begin a conversation with a character present at the player's location.",
			Parameters: objectSchema(map[string]any{
				"character_id": stringProp("Id or name of the character to talk to."),
			}, "character_id"),
		},
		{
			Name:        "end_dialogue",
			Description: "End the active conversation and return to narrative play.",
			Parameters:  objectSchema(map[string]any{}),
		},
		{
			Name:        "create_character",
			Description: "Introduce a new character into the story.",
			Parameters: objectSchema(map[string]any{
				"archetype": map[string]any{
					"type":        "string",
					"enum":        []string{"townsperson", "companion", "foe", "love_interest"},
					"description": "The kind of character to create.",
				},
				"location":  stringProp("Location id where the character appears. Defaults to the player's location."),
				"name_hint": stringProp("Preferred name for the character, if the story named them."),
			}, "archetype"),
		},
		{
			Name:        "update_relationship",
			Description: "Shift how much a character trusts the player.",
			Parameters: objectSchema(map[string]any{
				"character_id": stringProp("Id or name of the character."),
				"trust_delta":  map[string]any{"type": "integer", "description": "Signed trust change, typically between -20 and 20."},
			}, "character_id", "trust_delta"),
		},
		{
			Name:        "exchange_item",
			Description: "Move an item between the player and a character, or between two characters. Use \"player\" for the player.",
			Parameters: objectSchema(map[string]any{
				"giver":    stringProp("Who gives the item."),
				"receiver": stringProp("Who receives the item."),
				"item":     stringProp("The item being exchanged."),
			}, "giver", "receiver", "item"),
		},
		{
			Name:        "set_follow_status",
			Description: "Make the current dialogue partner start or stop following the player. Only valid during a conversation, for the partner.",
			Parameters: objectSchema(map[string]any{
				"character_id": stringProp("Id or name of the dialogue partner."),
				"following":    map[string]any{"type": "boolean", "description": "True to start following, false to stop."},
			}, "character_id", "following"),
		},
		{
			Name:        "set_status",
			Description: "Place a condition on a character, such as wounded or inspired.",
			Parameters: objectSchema(map[string]any{
				"character_id": stringProp("Id or name of the character."),
				"status":       stringProp("The status name."),
				"duration":     map[string]any{"type": "integer", "description": "How many turns the status lasts. Omit for a permanent status."},
			}, "character_id", "status"),
		},
		{
			Name:        "move_character",
			Description: "Relocate a character to another location.",
			Parameters: objectSchema(map[string]any{
				"character_id": stringProp("Id or name of the character."),
				"location":     stringProp("Destination location id."),
			}, "character_id", "location"),
		},
	}
}
