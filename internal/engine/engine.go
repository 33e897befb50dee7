// Package engine runs the turn pipeline: assess, resolve, narrate, translate,
// apply. One Orchestrator owns a single running game.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/emberwick/everloom/internal/atlas"
	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/engine/apply"
	"github.com/emberwick/everloom/internal/engine/content"
	"github.com/emberwick/everloom/internal/engine/gamemaster"
	"github.com/emberwick/everloom/internal/engine/odds"
	"github.com/emberwick/everloom/internal/engine/translator"
	"github.com/emberwick/everloom/internal/observe"
	"github.com/emberwick/everloom/internal/world"
)

// Game modes.
const (
	ModeNarrative = "narrative"
	ModeDialogue  = "dialogue"
)

// TurnResult is everything one completed turn produced.
type TurnResult struct {
	// Mode the turn ran in (the mode at the start of the turn).
	Mode string

	// Outcome is the resolved success or failure of the attempted action.
	Outcome odds.Outcome

	// Feedback is the outcome note shown to the player: the resolved odds
	// plus the gamemaster's success or failure message.
	Feedback string

	// Prose is the narration or dialogue line to show the player.
	Prose string

	// Degraded reports that the prose is a canned fallback because the
	// provider failed.
	Degraded bool

	// Aborted reports that the turn was abandoned because no difficulty
	// assessment could be obtained. Nothing changed; Prose carries a
	// generic note.
	Aborted bool

	// Report tallies the state updates extracted from the turn.
	Report *apply.Report
}

// abortNote is shown when the turn is abandoned for want of an assessment.
const abortNote = "[The outcome of that attempt is too uncertain to tell. Nothing happens.]"

// Orchestrator serialises and runs turns against one game's state.
type Orchestrator struct {
	mu sync.Mutex

	state    *world.State
	chars    *character.Store
	graph    *atlas.Graph
	expander *atlas.Expander

	assessor   *gamemaster.Assessor
	resolver   *odds.Resolver
	narrator   *content.Narrator
	dialogue   *content.Dialogue
	translator *translator.Translator
	applier    *apply.Applier

	universe string
	metrics  *observe.Metrics
}

// Deps bundles the components an Orchestrator runs.
type Deps struct {
	State    *world.State
	Chars    *character.Store
	Graph    *atlas.Graph
	Expander *atlas.Expander

	Assessor   *gamemaster.Assessor
	Resolver   *odds.Resolver
	Narrator   *content.Narrator
	Dialogue   *content.Dialogue
	Translator *translator.Translator
	Applier    *apply.Applier

	// Universe is the setting description fed to the narrator's system prompt.
	Universe string

	// Metrics may be nil; observe.DefaultMetrics is used then.
	Metrics *observe.Metrics
}

// New returns an Orchestrator over deps.
func New(deps Deps) *Orchestrator {
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Orchestrator{
		state:      deps.State,
		chars:      deps.Chars,
		graph:      deps.Graph,
		expander:   deps.Expander,
		assessor:   deps.Assessor,
		resolver:   deps.Resolver,
		narrator:   deps.Narrator,
		dialogue:   deps.Dialogue,
		translator: deps.Translator,
		applier:    deps.Applier,
		universe:   deps.Universe,
		metrics:    m,
	}
}

// Mode reports the current game mode.
func (o *Orchestrator) Mode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.DialogueActive {
		return ModeDialogue
	}
	return ModeNarrative
}

// PartnerName returns the display name of the active dialogue partner, or ""
// outside dialogue mode.
func (o *Orchestrator) PartnerName() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.DialogueActive {
		return ""
	}
	return o.chars.Name(o.state.DialoguePartner)
}

// Turn reports the number of completed turns.
func (o *Orchestrator) Turn() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Turn
}

// RunTurn runs one full turn for the player's input. A failed difficulty
// assessment abandons the turn without touching state (Aborted is set on the
// result); every later stage degrades in place rather than aborting, and
// only context cancellation returns an error.
func (o *Orchestrator) RunTurn(ctx context.Context, input string) (*TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("engine: empty player input")
	}

	turnStart := time.Now()
	mode := ModeNarrative
	if o.state.DialogueActive {
		mode = ModeDialogue
	}
	o.state.LastAction = input

	// 1. Gamemaster assessment.
	stageStart := time.Now()
	assessment, err := o.assessor.Assess(ctx, o.snapshot(mode, input))
	o.metrics.RecordStage(ctx, "assess", time.Since(stageStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("assessment unavailable, abandoning turn", "error", err)
		return &TurnResult{
			Mode:     mode,
			Prose:    abortNote,
			Degraded: true,
			Aborted:  true,
			Report:   &apply.Report{},
		}, nil
	}

	// 2. Odds resolution.
	outcome := o.resolver.Resolve(input, assessment.Difficulty, o.attributes())
	feedback := outcome.Message()
	if note := assessment.Message(outcome.Success); note != "" {
		feedback += " " + note
	}
	slog.Info("action resolved",
		"turn", o.state.Turn,
		"mode", mode,
		"difficulty", outcome.Difficulty,
		"probability", outcome.Probability,
		"success", outcome.Success,
	)

	// 3. Content generation.
	stageStart = time.Now()
	prose, degraded := o.generate(ctx, mode, input, feedback)
	o.metrics.RecordStage(ctx, "content", time.Since(stageStart).Seconds())
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// 4. State translation.
	stageStart = time.Now()
	requests, err := o.translator.Translate(ctx, translator.Input{
		Mode:          mode,
		StateContext:  o.stateContext(),
		PlayerInput:   input,
		GeneratedText: prose,
	})
	o.metrics.RecordStage(ctx, "translate", time.Since(stageStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("state translation degraded, no updates this turn", "error", err)
	}

	// 5. Update application.
	wasDialogue := o.state.DialogueActive
	stageStart = time.Now()
	report := o.applier.Apply(ctx, requests, outcome.Success)
	o.metrics.RecordStage(ctx, "apply", time.Since(stageStart).Seconds())
	o.metrics.RecordStateRequests(ctx, report.Accepted, report.Skipped, report.Dropped)
	switch {
	case !wasDialogue && o.state.DialogueActive:
		o.metrics.DialogueStarted(ctx)
	case wasDialogue && !o.state.DialogueActive:
		o.metrics.DialogueEnded(ctx)
	}

	// 6. History. A turn-ending transition means the exchange belongs to a
	// conversation that is over (or never happened); it is not recorded.
	if mode == ModeDialogue && o.state.DialogueActive && !report.Stopped {
		o.commitDialogue(o.state.DialoguePartner, input, feedback, prose)
	}

	// 7. Post-turn upkeep. Neighbour generation only matters when the next
	// input can be movement, so it is skipped mid-conversation and after a
	// turn-ending transition.
	o.chars.TickStatuses()
	if !o.state.DialogueActive && !report.Stopped {
		if err := o.expander.EnsureGenerated(ctx, o.state.LocationID); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("neighbor generation failed, retrying next turn", "location", o.state.LocationID, "error", err)
		}
	}
	o.state.Turn++

	o.metrics.RecordTurn(ctx, mode, outcome.Success, time.Since(turnStart).Seconds())
	return &TurnResult{
		Mode:     mode,
		Outcome:  outcome,
		Feedback: feedback,
		Prose:    prose,
		Degraded: degraded,
		Report:   report,
	}, nil
}

// generate runs the mode's content path. The exchange is committed to the
// partner's history by the caller once the applier has had its say, so a
// conversation that ends this turn is not appended to.
func (o *Orchestrator) generate(ctx context.Context, mode, input, outcomeMsg string) (string, bool) {
	if mode == ModeDialogue {
		partner, err := o.chars.Get(o.state.DialoguePartner)
		if err != nil {
			// Partner vanished from the store; fail back to narration.
			slog.Error("dialogue partner missing, leaving dialogue", "partner", o.state.DialoguePartner)
			o.state.LeaveDialogue()
		} else {
			reply, speakErr := o.dialogue.Speak(ctx, content.SpeakRequest{
				Partner:        partner,
				LocationName:   o.locationName(),
				TimeOfDay:      o.state.TimeOfDay,
				RecentEvents:   o.state.Summary,
				PlayerInput:    input,
				OutcomeMessage: outcomeMsg,
				NameOf:         o.chars.Name,
			})
			if speakErr != nil {
				slog.Warn("dialogue degraded", "error", speakErr)
			}
			return reply, speakErr != nil
		}
	}

	prose, err := o.narrator.Narrate(ctx, content.NarrativeContext{
		LocationName:      o.locationName(),
		CharactersPresent: o.presentNames(),
		TimeOfDay:         o.state.TimeOfDay,
		KeyInformation:    o.state.FlagSummary(),
		RecentEvents:      o.state.Summary,
		Objective:         o.state.Objective,
		LastPlayerAction:  input,
		OutcomeMessage:    outcomeMsg,
		Universe:          o.universe,
	})
	if err != nil {
		slog.Warn("narration degraded", "error", err)
	}
	return prose, err != nil
}

// commitDialogue appends the turn's exchange to the partner's append-only
// history: the player line, the outcome note, then the reply.
func (o *Orchestrator) commitDialogue(partnerID, input, outcomeMsg, reply string) {
	entries := []character.Utterance{
		{Speaker: content.SpeakerPlayer, Text: input},
		{Speaker: content.SpeakerGamemaster, Text: fmt.Sprintf("[Action Outcome: %s]", outcomeMsg)},
		{Speaker: partnerID, Text: reply},
	}
	for _, u := range entries {
		if err := o.chars.AppendUtterance(partnerID, u); err != nil {
			slog.Warn("dialogue history append failed", "partner", partnerID, "error", err)
			return
		}
	}
}

// snapshot assembles the gamemaster's view of the world.
func (o *Orchestrator) snapshot(mode, input string) gamemaster.Context {
	snap := gamemaster.Context{
		Mode:              mode,
		LocationName:      o.locationName(),
		TimeOfDay:         o.state.TimeOfDay,
		PlayerInventory:   append([]string(nil), o.state.Inventory...),
		PlayerStats:       o.state.PlayerStats,
		PresentCharacters: o.presentNames(),
		AdjacentLocations: o.graph.AdjacentIDs(o.state.LocationID),
		PlayerAction:      input,
	}
	if o.state.DialogueActive {
		if partner, err := o.chars.Get(o.state.DialoguePartner); err == nil {
			statuses := make([]string, 0, len(partner.Statuses))
			for name := range partner.Statuses {
				statuses = append(statuses, name)
			}
			snap.Partner = &gamemaster.PartnerContext{
				Name:      partner.Name,
				Inventory: partner.Inventory,
				Trust:     partner.Trust,
				Strength:  partner.Stats.Strength,
				Charisma:  partner.Stats.Charisma,
				Statuses:  statuses,
				Following: partner.Following,
			}
		}
	}
	return snap
}

// attributes builds the odds modifiers from the current state.
func (o *Orchestrator) attributes() odds.Attributes {
	attrs := odds.Attributes{
		Strength: o.state.PlayerStats.Strength,
		Charisma: o.state.PlayerStats.Charisma,
	}
	if o.state.DialogueActive {
		if partner, err := o.chars.Get(o.state.DialoguePartner); err == nil {
			attrs.InDialogue = true
			attrs.PartnerTrust = partner.Trust
		}
	}
	return attrs
}

// stateContext formats the world for the translator prompt.
func (o *Orchestrator) stateContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s (%s)\n", o.state.LocationID, o.locationName())
	fmt.Fprintf(&b, "Time of day: %s\n", o.state.TimeOfDay)
	fmt.Fprintf(&b, "Player inventory: %s\n", joinOrNone(o.state.Inventory))
	fmt.Fprintf(&b, "Narrative flags: %s\n", o.state.FlagSummary())
	fmt.Fprintf(&b, "Objective: %s\n", o.state.Objective)
	fmt.Fprintf(&b, "Characters here: %s\n", joinOrNone(o.presentIDs()))
	if o.state.DialogueActive {
		fmt.Fprintf(&b, "In dialogue with: %s\n", o.state.DialoguePartner)
	}
	fmt.Fprintf(&b, "Adjacent locations: %s", joinOrNone(o.graph.AdjacentIDs(o.state.LocationID)))
	return b.String()
}

func (o *Orchestrator) locationName() string {
	if loc, err := o.graph.Get(o.state.LocationID); err == nil {
		return loc.Name
	}
	return o.state.LocationID
}

func (o *Orchestrator) presentIDs() []string {
	return o.chars.AtLocation(o.state.LocationID)
}

func (o *Orchestrator) presentNames() []string {
	ids := o.presentIDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = o.chars.Name(id)
	}
	return names
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
