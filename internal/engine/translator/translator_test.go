package translator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
	"github.com/emberwick/everloom/pkg/provider/llm/mock"
)

func testInput() Input {
	return Input{
		Mode:          "narrative",
		StateContext:  "Location: forest_edge\nInventory: rope, torch",
		PlayerInput:   "give the rope to Varnas",
		GeneratedText: "You hand Varnas the coil of rope. He nods approvingly.",
	}
}

func newTranslator(t *testing.T, p llm.Provider) *Translator {
	t.Helper()
	store, err := prompts.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return New(p, store)
}

func TestTranslateToolCalls(t *testing.T) {
	t.Parallel()

	t.Run("decodes tool calls into typed requests", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{
			ModelCapabilities: llm.ModelCapabilities{SupportsToolCalling: true},
			CompleteResponse: &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
				{Name: "exchange_item", Arguments: `{"giver": "player", "receiver": "companion_varnas", "item": "rope"}`},
				{Name: "update_relationship", Arguments: `{"character_id": "companion_varnas", "trust_delta": 5}`},
			}},
		}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("requests = %d, want 2", len(got))
		}
		ex, ok := got[0].(*ExchangeItem)
		if !ok || ex.Giver != "player" || ex.Receiver != "companion_varnas" || ex.Item != "rope" {
			t.Errorf("requests[0] = %#v", got[0])
		}
		rel, ok := got[1].(*UpdateRelationship)
		if !ok || rel.TrustDelta != 5 {
			t.Errorf("requests[1] = %#v", got[1])
		}

		req := p.CompleteCalls[0].Req
		if len(req.Tools) != 8 {
			t.Errorf("tools offered = %d, want 8", len(req.Tools))
		}
		prompt := req.Messages[0].Content
		for _, want := range []string{"give the rope to Varnas", "You hand Varnas the coil of rope", "forest_edge"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("drops invalid tool calls individually", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{
			ModelCapabilities: llm.ModelCapabilities{SupportsToolCalling: true},
			CompleteResponse: &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
				{Name: "summon_dragon", Arguments: `{}`},
				{Name: "start_dialogue", Arguments: `{}`},
				{Name: "start_dialogue", Arguments: `{"character_id": "companion_varnas"}`},
			}},
		}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("requests = %d, want 1", len(got))
		}
		if sd, ok := got[0].(*StartDialogue); !ok || sd.CharacterID != "companion_varnas" {
			t.Errorf("requests[0] = %#v", got[0])
		}
	})

	t.Run("backends without tool support get no tools", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "[]"}}
		tr := newTranslator(t, p)

		if _, err := tr.Translate(context.Background(), testInput()); err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if tools := p.CompleteCalls[0].Req.Tools; len(tools) != 0 {
			t.Errorf("tools offered = %d, want 0", len(tools))
		}
	})
}

func TestTranslatePlainText(t *testing.T) {
	t.Parallel()

	t.Run("parses a prose-wrapped JSON array", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: "Here are the changes:\n[{\"request\": \"set_status\", \"character_id\": \"foe_garruk\", \"status\": \"Wounded\", \"duration\": 3}]",
		}}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("requests = %d, want 1", len(got))
		}
		st, ok := got[0].(*SetStatus)
		if !ok || st.Status != "Wounded" || st.Duration == nil || *st.Duration != 3 {
			t.Errorf("requests[0] = %#v", got[0])
		}
	})

	t.Run("response without an array yields zero requests", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: "Nothing about the world changed this turn.",
		}}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("requests = %d, want 0", len(got))
		}
	})

	t.Run("entries without a request field are dropped", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: `[{"foo": "bar"}, {"request": "end_dialogue"}]`,
		}}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("requests = %d, want 1", len(got))
		}
		if _, ok := got[0].(*EndDialogue); !ok {
			t.Errorf("requests[0] = %#v", got[0])
		}
	})

	t.Run("set_follow_status requires an explicit boolean", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: `[{"request": "set_follow_status", "character_id": "companion_varnas", "following": true},
				{"request": "set_follow_status", "character_id": "companion_varnas"}]`,
		}}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("requests = %d, want the value-less entry dropped", len(got))
		}
		fs, ok := got[0].(*SetFollowStatus)
		if !ok || fs.CharacterID != "companion_varnas" || fs.Following == nil || !*fs.Following {
			t.Errorf("requests[0] = %#v", got[0])
		}
	})

	t.Run("update_game_state decodes all sections", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: `[{"request": "update_game_state", "location": "whispering_glade",
				"time_of_day": "evening", "player_inventory_add": ["herbs"],
				"narrative_flags_set": {"gate_open": true},
				"companion_updates": {"companion_varnas": {"inventory_add": ["rope"]}},
				"current_objective": "Reach the shrine"}]`,
		}}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		ugs, ok := got[0].(*UpdateGameState)
		if !ok {
			t.Fatalf("requests[0] = %#v", got[0])
		}
		if ugs.Location != "whispering_glade" || ugs.TimeOfDay != "evening" || ugs.Objective != "Reach the shrine" {
			t.Errorf("scalar fields = %+v", ugs)
		}
		if v, ok := ugs.FlagsSet["gate_open"].(bool); !ok || !v {
			t.Errorf("FlagsSet = %v", ugs.FlagsSet)
		}
		cu, ok := ugs.CompanionUpdates["companion_varnas"]
		if !ok || len(cu.InventoryAdd) != 1 || cu.InventoryAdd[0] != "rope" {
			t.Errorf("CompanionUpdates = %v", ugs.CompanionUpdates)
		}
	})

	t.Run("provider failure yields zero requests and an error", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteErr: fmt.Errorf("backend down")}
		tr := newTranslator(t, p)

		got, err := tr.Translate(context.Background(), testInput())
		if err == nil {
			t.Error("Translate() error = nil, want provider error")
		}
		if len(got) != 0 {
			t.Errorf("requests = %d, want 0", len(got))
		}
	})
}
