package atlas

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emberwick/everloom/internal/envelope"
	"github.com/emberwick/everloom/internal/prompts"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// Expander lazily generates the neighbourhood of a location using one LLM
// completion for all four directions at once.
type Expander struct {
	graph    *Graph
	provider llm.Provider
	prompts  *prompts.Store
	universe string
}

// NewExpander returns an Expander writing into graph. universe is the
// free-text setting description injected into the generation prompt.
func NewExpander(graph *Graph, provider llm.Provider, store *prompts.Store, universe string) *Expander {
	return &Expander{graph: graph, provider: provider, prompts: store, universe: universe}
}

// proposedLocation is the per-direction payload in the generation response.
type proposedLocation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EnsureGenerated guarantees that the location's four neighbours exist.
//
// If the location's surroundings were already generated this is a no-op. One
// structured completion proposes all four neighbours; validation is
// all-or-nothing — a response missing any direction or any field is rejected
// in full and the generated flag stays unset, so the next visit retries.
// A proposed id that already exists in the graph is connected to rather than
// overwritten, and directions that already have a link keep it — the
// proposal for those directions is discarded. On success the flag is set
// permanently.
//
// On provider failure the graph is left untouched and the error is returned;
// movement into ungenerated terrain stays refused until a retry succeeds.
func (e *Expander) EnsureGenerated(ctx context.Context, locID string) error {
	loc, err := e.graph.Get(locID)
	if err != nil {
		return err
	}
	if loc.AdjacentGenerated {
		return nil
	}

	prompt, err := e.prompts.Render(prompts.LocationGeneration, map[string]string{
		"location_id":          loc.ID,
		"location_name":        loc.Name,
		"location_description": loc.Description,
		"universe":             e.universe,
	})
	if err != nil {
		// Template failed to load; fall back to a minimal built-in prompt.
		slog.Warn("location generation template unusable, using fallback", "error", err)
		prompt = fmt.Sprintf(
			"Invent the four locations adjacent to %q (%s). Respond with only a JSON object keyed north/east/south/west, each value {\"id\", \"name\", \"description\"}.",
			loc.Name, loc.Description)
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.8,
	})
	if err != nil {
		return fmt.Errorf("atlas: generate neighbours of %s: %w", locID, err)
	}

	var proposal map[string]proposedLocation
	if err := envelope.Object(resp.Content, &proposal); err != nil {
		return fmt.Errorf("atlas: parse neighbour proposal for %s: %w", locID, err)
	}
	if err := validateProposal(proposal); err != nil {
		return fmt.Errorf("atlas: reject neighbour proposal for %s: %w", locID, err)
	}

	e.graph.mu.Lock()
	defer e.graph.mu.Unlock()

	current := e.graph.locations[locID]
	for _, dir := range Directions {
		if known, linked := current.Neighbors[dir]; linked {
			// The direction was passed as context for consistency only;
			// established geography is never rewired.
			slog.Debug("direction already linked, discarding proposal", "direction", dir, "existing", known)
			continue
		}
		p := proposal[string(dir)]
		if _, exists := e.graph.locations[p.ID]; !exists {
			if err := e.graph.addLocked(&Location{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
			}); err != nil {
				return fmt.Errorf("atlas: insert %s: %w", p.ID, err)
			}
		} else {
			slog.Debug("proposed location already exists, linking instead", "id", p.ID, "direction", dir)
		}
		if err := e.graph.connectLocked(locID, dir, p.ID); err != nil {
			return fmt.Errorf("atlas: connect %s %s %s: %w", locID, dir, p.ID, err)
		}
	}

	e.graph.locations[locID].AdjacentGenerated = true
	slog.Info("location neighbourhood generated", "location", locID)
	return nil
}

// validateProposal enforces the all-or-nothing contract: every direction
// present, every field non-empty, no two directions sharing an id, and no
// direction pointing back at an empty id.
func validateProposal(p map[string]proposedLocation) error {
	seen := make(map[string]string, len(Directions))
	for _, dir := range Directions {
		loc, ok := p[string(dir)]
		if !ok {
			return fmt.Errorf("missing direction %q", dir)
		}
		if strings.TrimSpace(loc.ID) == "" ||
			strings.TrimSpace(loc.Name) == "" ||
			strings.TrimSpace(loc.Description) == "" {
			return fmt.Errorf("direction %q has empty fields", dir)
		}
		if prev, dup := seen[loc.ID]; dup {
			return fmt.Errorf("id %q reused for %s and %s", loc.ID, prev, dir)
		}
		seen[loc.ID] = string(dir)
	}
	return nil
}
