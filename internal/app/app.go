// Package app assembles a full game from configuration and runs it.
//
// New wires the world, character, and atlas stores, the prompt templates, and
// every pipeline stage into one engine.Orchestrator. Session runs turns on a
// background worker and delivers results over a channel, so a front end never
// blocks its event loop; the boundary is message passing only.
package app

import (
	"fmt"
	"math/rand/v2"

	"github.com/emberwick/everloom/internal/atlas"
	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/config"
	"github.com/emberwick/everloom/internal/engine"
	"github.com/emberwick/everloom/internal/engine/apply"
	"github.com/emberwick/everloom/internal/engine/content"
	"github.com/emberwick/everloom/internal/engine/gamemaster"
	"github.com/emberwick/everloom/internal/engine/odds"
	"github.com/emberwick/everloom/internal/engine/translator"
	"github.com/emberwick/everloom/internal/observe"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/internal/world"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Seed world constants.
const (
	startLocationID   = "forest_edge"
	startLocationName = "The Edge of the Whispering Forest"
	startTimeOfDay    = "morning"

	openingSummary = "You stand at the edge of an ancient, whispering forest. " +
		"The road behind you is long gone; ahead, pale light filters through " +
		"leaves that murmur without wind."
)

// buildGame assembles the orchestrator and its stores from config.
func buildGame(cfg *config.Config, provider llm.Provider, metrics *observe.Metrics) (*engine.Orchestrator, error) {
	store, err := prompts.Load(cfg.Game.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("app: load prompts: %w", err)
	}

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	state, chars, graph, err := seedWorld()
	if err != nil {
		return nil, fmt.Errorf("app: seed world: %w", err)
	}

	expander := atlas.NewExpander(graph, provider, store, cfg.Game.Universe)
	generator := character.NewGenerator(chars, rng)
	summariser := content.NewSummariser(provider, store)

	return engine.New(engine.Deps{
		State:      state,
		Chars:      chars,
		Graph:      graph,
		Expander:   expander,
		Assessor:   gamemaster.NewAssessor(provider, store),
		Resolver:   odds.NewResolver(rng),
		Narrator:   content.NewNarrator(provider, store, cfg.Game.HistoryWindow),
		Dialogue:   content.NewDialogue(provider, store),
		Translator: translator.New(provider, store),
		Applier:    apply.New(state, chars, generator, graph, expander, summariser),
		Universe:   cfg.Game.Universe,
		Metrics:    metrics,
	}), nil
}

// seedWorld builds the opening scene: the starting location, the player's
// pack, and one companion waiting at the trailhead.
func seedWorld() (*world.State, *character.Store, *atlas.Graph, error) {
	state := world.NewState(startLocationID, startTimeOfDay, openingSummary)
	state.AddItem("worn adventurer pack")
	state.AddItem("flint and steel")

	graph := atlas.NewGraph()
	if err := graph.Add(&atlas.Location{
		ID:   startLocationID,
		Name: startLocationName,
		Description: "A ragged treeline where farmland gives way to old growth. " +
			"A half-swallowed waymarker leans at the trailhead.",
	}); err != nil {
		return nil, nil, nil, err
	}

	chars := character.NewStore()
	if err := chars.Add(&character.Character{
		ID:        "companion_varnas_the_skeptic",
		Name:      "Varnas the Skeptic",
		Archetype: character.ArchetypeCompanion,
		Gender:    "male",
		Traits:    []string{"wary", "loyal", "dry-witted"},
		Location:  startLocationID,
		Inventory: []string{"short sword", "waterskin"},
		Stats:     character.Stats{Strength: 11, Charisma: 9},
		Trust:     character.InitialTrust(character.ArchetypeCompanion),
		Description: "A weathered traveller who has seen too many omens come to " +
			"nothing. He follows you anyway.",
	}); err != nil {
		return nil, nil, nil, err
	}

	return state, chars, graph, nil
}
