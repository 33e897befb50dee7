// Package apply commits translator requests to the world, character, and
// atlas state, gated on the turn's resolved outcome.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emberwick/everloom/internal/atlas"
	"github.com/emberwick/everloom/internal/character"
	"github.com/emberwick/everloom/internal/engine/content"
	"github.com/emberwick/everloom/internal/engine/translator"
	"github.com/emberwick/everloom/internal/world"
)

// Report tallies what happened to a turn's requests.
type Report struct {
	// Accepted counts requests that mutated state.
	Accepted int

	// Skipped counts requests gated off because the action failed, plus
	// requests abandoned after a turn-ending request fired.
	Skipped int

	// Dropped counts requests that were invalid against the current state.
	Dropped int

	// Stopped reports that a turn-ending request cut the batch short. The
	// orchestrator skips the post-turn history append and neighbour
	// generation when it is set.
	Stopped bool

	// Events are human-readable feedback: accepted changes plus the reasons
	// requests were refused.
	Events []string
}

// Applier owns the write path of the turn pipeline.
type Applier struct {
	state      *world.State
	chars      *character.Store
	generator  *character.Generator
	graph      *atlas.Graph
	expander   *atlas.Expander
	summariser *content.Summariser
}

// New returns an Applier over the given state stores.
func New(state *world.State, chars *character.Store, gen *character.Generator, graph *atlas.Graph, exp *atlas.Expander, sum *content.Summariser) *Applier {
	return &Applier{
		state:      state,
		chars:      chars,
		generator:  gen,
		graph:      graph,
		expander:   exp,
		summariser: sum,
	}
}

// gated reports whether req only applies on a successful turn. Starting or
// ending a talk, meeting someone, and trust shifts happen even when the
// attempted action failed; everything else needs success.
func gated(req translator.Request) bool {
	switch req.(type) {
	case *translator.StartDialogue, *translator.EndDialogue,
		*translator.CreateCharacter, *translator.UpdateRelationship:
		return false
	}
	return true
}

// Apply commits reqs in order. success is the turn's resolved outcome; gated
// request kinds are skipped when it is false. Dialogue transitions and
// character spawns end the turn: once one fires, or a start_dialogue fails on
// a missing or absent character, the remaining requests are abandoned.
func (a *Applier) Apply(ctx context.Context, reqs []translator.Request, success bool) *Report {
	rep := &Report{}
	for i, req := range reqs {
		if gated(req) && !success {
			slog.Debug("skipping state update, action failed", "request", req.Name())
			rep.Skipped++
			rep.Events = append(rep.Events, "nothing came of "+req.Name()+"; the attempt failed")
			continue
		}

		var err error
		stop := false
		switch r := req.(type) {
		case *translator.UpdateGameState:
			err = a.applyGameState(ctx, r, rep)
		case *translator.StartDialogue:
			stop, err = a.startDialogue(r, rep)
		case *translator.EndDialogue:
			err = a.endDialogue(ctx, rep)
			stop = err == nil
		case *translator.CreateCharacter:
			err = a.createCharacter(r, rep)
			stop = err == nil
		case *translator.UpdateRelationship:
			err = a.updateRelationship(r, rep)
		case *translator.ExchangeItem:
			err = a.exchangeItem(r, rep)
		case *translator.SetFollowStatus:
			err = a.setFollowStatus(r, rep)
		case *translator.SetStatus:
			err = a.setStatus(r, rep)
		case *translator.MoveCharacter:
			err = a.moveCharacter(r, rep)
		default:
			err = fmt.Errorf("apply: unknown request %q", req.Name())
		}
		if err != nil {
			slog.Warn("dropping state update", "request", req.Name(), "error", err)
			rep.Dropped++
			rep.Events = append(rep.Events, strings.TrimPrefix(err.Error(), "apply: "))
		} else {
			rep.Accepted++
		}

		if stop {
			rep.Stopped = true
			if rest := len(reqs) - i - 1; rest > 0 {
				slog.Debug("turn-ending request, abandoning remaining updates", "request", req.Name(), "count", rest)
				rep.Skipped += rest
			}
			break
		}
	}
	return rep
}

func (a *Applier) applyGameState(ctx context.Context, r *translator.UpdateGameState, rep *Report) error {
	if r.Location != "" && r.Location != a.state.LocationID {
		if err := a.movePlayer(ctx, r.Location); err != nil {
			return err
		}
		rep.Events = append(rep.Events, "moved to "+r.Location)
	}
	if r.TimeOfDay != "" {
		a.state.TimeOfDay = r.TimeOfDay
	}
	for _, item := range r.InventoryAdd {
		a.state.AddItem(item)
		rep.Events = append(rep.Events, "gained "+item)
	}
	for _, item := range r.InventoryRemove {
		if a.state.RemoveItem(item) {
			rep.Events = append(rep.Events, "lost "+item)
		}
	}
	for k, v := range r.FlagsSet {
		a.state.SetFlag(k, v)
	}
	for _, k := range r.FlagsDelete {
		a.state.DeleteFlag(k)
	}
	for id, cu := range r.CompanionUpdates {
		resolved, err := a.chars.Resolve(id)
		if err != nil {
			slog.Warn("companion update for unknown character", "ref", id)
			continue
		}
		for _, item := range cu.InventoryAdd {
			if err := a.chars.AddItem(resolved, item); err != nil {
				slog.Warn("companion inventory add failed", "character", resolved, "error", err)
			}
		}
		for _, item := range cu.InventoryRemove {
			if _, err := a.chars.RemoveItem(resolved, item); err != nil {
				slog.Warn("companion inventory remove failed", "character", resolved, "error", err)
			}
		}
	}
	if r.Objective != "" {
		a.state.Objective = r.Objective
	}
	return nil
}

// movePlayer routes a location change through the atlas. An unknown
// destination triggers neighbor generation for the current location first; if
// the destination still does not exist the move is refused.
func (a *Applier) movePlayer(ctx context.Context, dest string) error {
	if !a.graph.Contains(dest) {
		if err := a.expander.EnsureGenerated(ctx, a.state.LocationID); err != nil {
			return fmt.Errorf("apply: expand around %s: %w", a.state.LocationID, err)
		}
		if !a.graph.Contains(dest) {
			return fmt.Errorf("apply: destination %s does not exist", dest)
		}
	}
	a.state.LocationID = dest

	// Followers travel with the player.
	for _, id := range a.chars.IDs() {
		c, err := a.chars.Get(id)
		if err != nil || !c.Following {
			continue
		}
		if err := a.chars.SetLocation(id, dest); err != nil {
			slog.Warn("follower move failed", "character", id, "error", err)
		}
	}
	return nil
}

// startDialogue opens a conversation. It ends the turn when it takes effect,
// and also when the target does not exist or is elsewhere — later requests in
// the batch were extracted against a conversation that never happened.
// Asking to talk while already talking is a no-op with feedback.
func (a *Applier) startDialogue(r *translator.StartDialogue, rep *Report) (bool, error) {
	if a.state.DialogueActive {
		rep.Events = append(rep.Events, "already talking with "+a.state.DialoguePartner)
		return false, nil
	}
	id, err := a.chars.Resolve(r.CharacterID)
	if err != nil {
		return true, fmt.Errorf("apply: start dialogue: %w", err)
	}
	c, err := a.chars.Get(id)
	if err != nil {
		return true, err
	}
	if c.Location != a.state.LocationID {
		return true, fmt.Errorf("apply: %s is not here", id)
	}
	if err := a.state.EnterDialogue(id); err != nil {
		return false, err
	}
	rep.Events = append(rep.Events, "now talking with "+id)
	return true, nil
}

func (a *Applier) endDialogue(ctx context.Context, rep *Report) error {
	if !a.state.DialogueActive {
		return fmt.Errorf("apply: no active dialogue to end")
	}
	partner := a.state.DialoguePartner
	history, err := a.chars.History(partner)
	if err != nil {
		history = nil
	}

	summary, err := a.summariser.Summarise(ctx, history, a.chars.Name)
	if err != nil {
		slog.Warn("conversation summary degraded", "character", partner, "error", err)
	}
	a.state.AppendSummary(content.SummaryFragment(a.chars.Name(partner), summary))
	a.state.LeaveDialogue()
	rep.Events = append(rep.Events, "ended conversation with "+partner)
	return nil
}

func (a *Applier) createCharacter(r *translator.CreateCharacter, rep *Report) error {
	archetype := character.Archetype(r.Archetype)
	if !archetype.IsValid() {
		return fmt.Errorf("apply: unknown archetype %q", r.Archetype)
	}
	location := r.Location
	if location == "" {
		location = a.state.LocationID
	}
	id, err := a.generator.Generate(archetype, location, r.NameHint)
	if err != nil {
		return fmt.Errorf("apply: create character: %w", err)
	}
	rep.Events = append(rep.Events, fmt.Sprintf("%s appeared at %s", id, location))
	return nil
}

func (a *Applier) updateRelationship(r *translator.UpdateRelationship, rep *Report) error {
	if strings.EqualFold(strings.TrimSpace(r.CharacterID), playerRef) {
		return fmt.Errorf("apply: the player has no trust score to shift")
	}
	id, err := a.chars.Resolve(r.CharacterID)
	if err != nil {
		return fmt.Errorf("apply: update relationship: %w", err)
	}
	trust, err := a.chars.AdjustTrust(id, r.TrustDelta)
	if err != nil {
		return err
	}
	rep.Events = append(rep.Events, fmt.Sprintf("%s trust %+d (now %d)", id, r.TrustDelta, trust))
	return nil
}

// playerRef names the player on either side of an exchange.
const playerRef = "player"

// exchangeParty maps an exchange side to playerRef or a character id.
func (a *Applier) exchangeParty(ref string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(ref), playerRef) {
		return playerRef, nil
	}
	return a.chars.Resolve(ref)
}

// exchangeItem moves one item between two parties. The exchange must involve
// the player or the active dialogue partner; two bystanders cannot trade
// among themselves, and nobody trades with themselves.
func (a *Applier) exchangeItem(r *translator.ExchangeItem, rep *Report) error {
	giver, err := a.exchangeParty(r.Giver)
	if err != nil {
		return fmt.Errorf("apply: exchange giver: %w", err)
	}
	receiver, err := a.exchangeParty(r.Receiver)
	if err != nil {
		return fmt.Errorf("apply: exchange receiver: %w", err)
	}
	if giver == receiver {
		return fmt.Errorf("apply: %s cannot exchange %q with themselves", giver, r.Item)
	}
	partnerInvolved := a.state.DialogueActive &&
		(giver == a.state.DialoguePartner || receiver == a.state.DialoguePartner)
	if giver != playerRef && receiver != playerRef && !partnerInvolved {
		return fmt.Errorf("apply: exchange between %s and %s involves neither the player nor the dialogue partner", giver, receiver)
	}

	take := func(who string) (bool, error) {
		if who == playerRef {
			return a.state.RemoveItem(r.Item), nil
		}
		return a.chars.RemoveItem(who, r.Item)
	}
	give := func(who string) error {
		if who == playerRef {
			a.state.AddItem(r.Item)
			return nil
		}
		return a.chars.AddItem(who, r.Item)
	}

	removed, err := take(giver)
	if err != nil {
		return fmt.Errorf("apply: exchange giver: %w", err)
	}
	if !removed {
		return fmt.Errorf("apply: %s does not hold %q", giver, r.Item)
	}
	if err := give(receiver); err != nil {
		// Hand the item back rather than lose it.
		_ = give(giver)
		return fmt.Errorf("apply: exchange receiver: %w", err)
	}
	rep.Events = append(rep.Events, fmt.Sprintf("%s gave %s to %s", giver, r.Item, receiver))
	return nil
}

// setFollowStatus flips whether the dialogue partner travels with the
// player. Only the active partner can be asked, and only mid-conversation.
func (a *Applier) setFollowStatus(r *translator.SetFollowStatus, rep *Report) error {
	if r.Following == nil {
		return fmt.Errorf("apply: set follow status without a value")
	}
	if !a.state.DialogueActive {
		return fmt.Errorf("apply: follow status can only change during a conversation")
	}
	id, err := a.chars.Resolve(r.CharacterID)
	if err != nil {
		return fmt.Errorf("apply: set follow status: %w", err)
	}
	if id != a.state.DialoguePartner {
		return fmt.Errorf("apply: %s is not the dialogue partner", id)
	}
	c, err := a.chars.Get(id)
	if err != nil {
		return err
	}
	if c.Following == *r.Following {
		if c.Following {
			rep.Events = append(rep.Events, id+" is already following")
		} else {
			rep.Events = append(rep.Events, id+" is already staying behind")
		}
		return nil
	}
	if err := a.chars.SetFollowing(id, *r.Following); err != nil {
		return err
	}
	if *r.Following {
		rep.Events = append(rep.Events, id+" now follows you")
	} else {
		rep.Events = append(rep.Events, id+" stays behind")
	}
	return nil
}

func (a *Applier) setStatus(r *translator.SetStatus, rep *Report) error {
	id, err := a.chars.Resolve(r.CharacterID)
	if err != nil {
		return fmt.Errorf("apply: set status: %w", err)
	}
	if err := a.chars.SetStatus(id, r.Status, r.Duration); err != nil {
		return err
	}
	rep.Events = append(rep.Events, fmt.Sprintf("%s is now %s", id, r.Status))
	return nil
}

func (a *Applier) moveCharacter(r *translator.MoveCharacter, rep *Report) error {
	id, err := a.chars.Resolve(r.CharacterID)
	if err != nil {
		return fmt.Errorf("apply: move character: %w", err)
	}
	if !a.graph.Contains(r.Location) {
		return fmt.Errorf("apply: destination %s does not exist", r.Location)
	}
	if err := a.chars.SetLocation(id, r.Location); err != nil {
		return err
	}
	rep.Events = append(rep.Events, fmt.Sprintf("%s moved to %s", id, r.Location))
	return nil
}
