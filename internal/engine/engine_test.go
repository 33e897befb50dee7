package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/emberwick/everloom/internal/atlas"
	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/engine/apply"
	"github.com/emberwick/everloom/internal/engine/content"
	"github.com/emberwick/everloom/internal/engine/gamemaster"
	"github.com/emberwick/everloom/internal/engine/odds"
	"github.com/emberwick/everloom/internal/engine/translator"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/internal/world"
	"github.com/emberwick/everloom/pkg/provider/llm"
	"github.com/emberwick/everloom/pkg/provider/llm/mock"
)

// neighborProposal is a valid four-way location generation answer.
const neighborProposal = `{
	"north": {"id": "whispering_glade", "name": "Whispering Glade", "description": "A quiet clearing."},
	"east": {"id": "old_mill", "name": "Old Mill", "description": "A ruined mill."},
	"south": {"id": "kings_road", "name": "King's Road", "description": "A muddy road."},
	"west": {"id": "dark_thicket", "name": "Dark Thicket", "description": "Dense brambles."}
}`

// script answers each pipeline stage by the request's temperature, which is
// distinct per stage. Dialogue and location generation share a temperature
// and are told apart by the system prompt.
type script struct {
	assessment  string
	prose       string
	translation string
	summary     string
}

func (s script) respond(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	switch req.Temperature {
	case 0.2:
		return &llm.CompletionResponse{Content: s.assessment}, nil
	case 0.9:
		return &llm.CompletionResponse{Content: s.prose}, nil
	case 0.1:
		return &llm.CompletionResponse{Content: s.translation}, nil
	case 0.3:
		return &llm.CompletionResponse{Content: s.summary}, nil
	case 0.8:
		if req.SystemPrompt != "" {
			return &llm.CompletionResponse{Content: s.prose}, nil
		}
		return &llm.CompletionResponse{Content: neighborProposal}, nil
	}
	return nil, fmt.Errorf("unexpected request at temperature %v", req.Temperature)
}

func newOrchestrator(t *testing.T, p llm.Provider) (*Orchestrator, *world.State, *character.Store, *atlas.Graph) {
	t.Helper()

	store, err := prompts.Load("")
	if err != nil {
		t.Fatal(err)
	}

	state := world.NewState("forest_edge", "morning", "You arrived at the forest edge.")
	state.AddItem("rope")

	chars := character.NewStore()
	if err := chars.Add(&character.Character{
		ID: "companion_varnas", Name: "Varnas the Skeptic",
		Archetype: character.ArchetypeCompanion, Trust: 20,
		Location: "forest_edge",
		Stats:    character.Stats{Strength: 10, Charisma: 10},
	}); err != nil {
		t.Fatal(err)
	}

	graph := atlas.NewGraph()
	if err := graph.Add(&atlas.Location{
		ID: "forest_edge", Name: "Forest Edge", Description: "Where the trees begin.",
	}); err != nil {
		t.Fatal(err)
	}

	expander := atlas.NewExpander(graph, p, store, "a fantasy realm")
	gen := character.NewGenerator(chars, rand.New(rand.NewPCG(1, 2)))
	summariser := content.NewSummariser(p, store)

	o := New(Deps{
		State:      state,
		Chars:      chars,
		Graph:      graph,
		Expander:   expander,
		Assessor:   gamemaster.NewAssessor(p, store),
		Resolver:   odds.NewResolver(rand.New(rand.NewPCG(7, 7))),
		Narrator:   content.NewNarrator(p, store, 10),
		Dialogue:   content.NewDialogue(p, store),
		Translator: translator.New(p, store),
		Applier:    apply.New(state, chars, gen, graph, expander, summariser),
		Universe:   "a fantasy realm",
	})
	return o, state, chars, graph
}

func TestRunTurnNarrative(t *testing.T) {
	t.Parallel()

	s := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "trivial", "success_message": "The acorn is yours.", "failure_message": "It rolls away."}`,
		prose:       "You pick up a gleaming acorn.",
		translation: `[{"request": "update_game_state", "player_inventory_add": ["acorn"]}]`,
	}
	p := &mock.Provider{CompleteFunc: s.respond}
	o, state, _, graph := newOrchestrator(t, p)

	res, err := o.RunTurn(context.Background(), "pick up the acorn")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if res.Mode != ModeNarrative {
		t.Errorf("Mode = %q", res.Mode)
	}
	if !res.Outcome.Success || res.Outcome.Difficulty != odds.Accept {
		t.Errorf("Outcome = %+v", res.Outcome)
	}
	if res.Prose != "You pick up a gleaming acorn." {
		t.Errorf("Prose = %q", res.Prose)
	}
	if res.Degraded {
		t.Error("Degraded = true")
	}
	if res.Report.Accepted != 1 {
		t.Errorf("Report = %+v", res.Report)
	}
	if !state.HasItem("acorn") {
		t.Errorf("inventory = %v", state.Inventory)
	}
	if state.Turn != 1 {
		t.Errorf("Turn = %d", state.Turn)
	}

	// Post-turn upkeep generated the current location's neighbors.
	loc, err := graph.Get("forest_edge")
	if err != nil {
		t.Fatal(err)
	}
	if !loc.AdjacentGenerated || len(loc.Neighbors) != 4 {
		t.Errorf("location after turn = %+v", loc)
	}
}

func TestRunTurnDialogue(t *testing.T) {
	t.Parallel()

	// Turn 1: narration leads into a conversation.
	s := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "just talking", "success_message": "He listens.", "failure_message": "He turns away."}`,
		prose:       "Varnas raises an eyebrow as you approach.",
		translation: `[{"request": "start_dialogue", "character_id": "Varnas"}]`,
	}
	p := &mock.Provider{CompleteFunc: s.respond}
	o, state, chars, _ := newOrchestrator(t, p)

	if _, err := o.RunTurn(context.Background(), "talk to Varnas"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if o.Mode() != ModeDialogue || state.DialoguePartner != "companion_varnas" {
		t.Fatalf("mode = %q, partner = %q", o.Mode(), state.DialoguePartner)
	}
	if got := o.PartnerName(); got != "Varnas the Skeptic" {
		t.Errorf("PartnerName() = %q", got)
	}

	// Turn 2 runs on the dialogue path and commits the exchange.
	s2 := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "friendly", "success_message": "He warms to the idea.", "failure_message": "He scoffs."}`,
		prose:       "\"Fine. I'll come along,\" he grumbles.",
		translation: `[{"request": "update_relationship", "character_id": "companion_varnas", "trust_delta": 5}]`,
	}
	p.CompleteFunc = s2.respond

	res, err := o.RunTurn(context.Background(), "ask him to join you")
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if res.Mode != ModeDialogue {
		t.Errorf("Mode = %q", res.Mode)
	}

	history, err := chars.History("companion_varnas")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want player + outcome + reply", len(history))
	}
	if history[0].Speaker != content.SpeakerPlayer || history[0].Text != "ask him to join you" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if !strings.HasPrefix(history[1].Text, "[Action Outcome:") {
		t.Errorf("history[1] = %+v", history[1])
	}
	if history[2].Speaker != "companion_varnas" {
		t.Errorf("history[2] = %+v", history[2])
	}

	c, _ := chars.Get("companion_varnas")
	if c.Trust != 25 {
		t.Errorf("trust = %d, want 25", c.Trust)
	}
}

func TestRunTurnAbortsWithoutAssessment(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: fmt.Errorf("backend down")}
	o, state, _, _ := newOrchestrator(t, p)

	res, err := o.RunTurn(context.Background(), "smash the gate")
	if err != nil {
		t.Fatalf("RunTurn() error = %v, want abandoned turn", err)
	}
	if !res.Aborted || !res.Degraded {
		t.Errorf("result flags = aborted %v, degraded %v, want both", res.Aborted, res.Degraded)
	}
	if !strings.Contains(res.Prose, "uncertain") {
		t.Errorf("Prose = %q, want a generic uncertainty note", res.Prose)
	}
	if state.Turn != 0 {
		t.Errorf("Turn = %d, want no turn counted", state.Turn)
	}
	if state.HasItem("acorn") || state.LocationID != "forest_edge" {
		t.Errorf("state mutated on abandoned turn: %+v", state)
	}
}

func TestRunTurnDegradesOnNarrationFailure(t *testing.T) {
	t.Parallel()

	s := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "ok", "success_message": "Done.", "failure_message": "Not quite."}`,
		translation: `[]`,
	}
	p := &mock.Provider{CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if req.Temperature == 0.9 {
			return nil, fmt.Errorf("backend down")
		}
		return s.respond(ctx, req)
	}}
	o, state, _, _ := newOrchestrator(t, p)

	res, err := o.RunTurn(context.Background(), "look around")
	if err != nil {
		t.Fatalf("RunTurn() error = %v, want degraded turn", err)
	}
	if !res.Degraded || res.Aborted {
		t.Errorf("result flags = degraded %v, aborted %v", res.Degraded, res.Aborted)
	}
	if res.Prose == "" {
		t.Error("Prose empty, want canned fallback")
	}
	if state.Turn != 1 {
		t.Errorf("Turn = %d, want the turn to complete", state.Turn)
	}
}

func TestRunTurnForcedFailure(t *testing.T) {
	t.Parallel()

	s := script{
		assessment:  `{"difficulty": "Impossible", "reasoning": "gravity holds", "success_message": "You soar.", "failure_message": "Your feet never leave the ground."}`,
		prose:       "You flap your arms to no avail.",
		translation: `[{"request": "update_game_state", "player_inventory_add": ["moon rock"]}]`,
	}
	p := &mock.Provider{CompleteFunc: s.respond}
	o, state, _, _ := newOrchestrator(t, p)

	res, err := o.RunTurn(context.Background(), "fly to the moon")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if res.Outcome.Success || res.Outcome.Roll != -1 {
		t.Errorf("Outcome = %+v, want forced failure without a roll", res.Outcome)
	}
	if !strings.Contains(res.Feedback, "Your feet never leave the ground.") {
		t.Errorf("Feedback = %q, want the failure message quoted", res.Feedback)
	}
	if state.HasItem("moon rock") {
		t.Error("gated update applied despite the forced failure")
	}
	if res.Report.Skipped != 1 {
		t.Errorf("Report = %+v, want the update skipped", res.Report)
	}
}

func TestRunTurnDialogueEndSkipsHistory(t *testing.T) {
	t.Parallel()

	s := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "a goodbye", "success_message": "He nods.", "failure_message": "He frowns."}`,
		prose:       "\"Farewell, then,\" he says.",
		translation: `[{"request": "end_dialogue"}, {"request": "update_relationship", "character_id": "companion_varnas", "trust_delta": 5}]`,
		summary:     "They said their goodbyes.",
	}
	p := &mock.Provider{CompleteFunc: s.respond}
	o, state, chars, _ := newOrchestrator(t, p)

	if err := state.EnterDialogue("companion_varnas"); err != nil {
		t.Fatal(err)
	}
	if err := chars.AppendUtterance("companion_varnas", character.Utterance{Speaker: "player", Text: "Hello."}); err != nil {
		t.Fatal(err)
	}

	res, err := o.RunTurn(context.Background(), "say goodbye")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if state.DialogueActive {
		t.Error("still in dialogue after end_dialogue")
	}
	if !res.Report.Stopped || res.Report.Skipped != 1 {
		t.Errorf("Report = %+v, want the batch cut short", res.Report)
	}

	// The closing exchange is not appended to a conversation that is over.
	history, err := chars.History("companion_varnas")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("history = %d entries, want the pre-turn entry only", len(history))
	}
	if !strings.Contains(state.Summary, "They said their goodbyes.") {
		t.Errorf("summary = %q", state.Summary)
	}
}

func TestRunTurnRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	o, _, _, _ := newOrchestrator(t, p)

	if _, err := o.RunTurn(context.Background(), "   "); err == nil {
		t.Error("RunTurn() error = nil, want empty input rejection")
	}
}

func TestRunTurnHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mock.Provider{CompleteErr: context.Canceled}
	o, _, _, _ := newOrchestrator(t, p)

	if _, err := o.RunTurn(ctx, "look around"); err == nil {
		t.Error("RunTurn() error = nil, want context error")
	}
}

func TestRunTurnTicksStatuses(t *testing.T) {
	t.Parallel()

	s := script{
		assessment:  `{"difficulty": "Accept", "reasoning": "ok", "success_message": "Time passes.", "failure_message": "Time passes anyway."}`,
		prose:       "Time passes.",
		translation: `[]`,
	}
	p := &mock.Provider{CompleteFunc: s.respond}
	o, _, chars, _ := newOrchestrator(t, p)

	d := 1
	if err := chars.SetStatus("companion_varnas", "inspired", &d); err != nil {
		t.Fatal(err)
	}

	if _, err := o.RunTurn(context.Background(), "wait"); err != nil {
		t.Fatal(err)
	}
	c, _ := chars.Get("companion_varnas")
	if _, ok := c.Statuses["inspired"]; ok {
		t.Error("status survived its final turn")
	}
}
