// Package atlas maintains the game's location graph.
//
// The world map is a lazily generated 4-connected grid of locations. Links
// are always bidirectional: connecting A north-to-B also connects B
// south-to-A. Neighbours of a location are invented by an LLM the first time
// the player stands there (see Expander); once a location's surroundings have
// been generated they are settled permanently.
package atlas

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when a location id does not exist in the graph.
	ErrNotFound = errors.New("atlas: location not found")

	// ErrDuplicateID is returned when adding a location whose id already exists.
	ErrDuplicateID = errors.New("atlas: duplicate location id")

	// ErrNoExit is returned when moving in a direction with no link.
	ErrNoExit = errors.New("atlas: no exit in that direction")
)

// Direction is one of the four cardinal directions.
type Direction string

const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
)

// Directions lists all four directions in fixed order.
var Directions = []Direction{North, East, South, West}

// IsValid reports whether d is a recognised direction.
func (d Direction) IsValid() bool {
	switch d {
	case North, East, South, West:
		return true
	}
	return false
}

// Opposite returns the reverse direction. north<->south, east<->west.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return d
}

// Location is one node of the world map.
type Location struct {
	ID          string
	Name        string
	Description string

	// Neighbors maps direction to the adjacent location id. Absent entries
	// mean "not yet generated" until AdjacentGenerated is set, and "no exit"
	// after.
	Neighbors map[Direction]string

	// AdjacentGenerated reports whether this location's surroundings have
	// been generated. Once true it never flips back.
	AdjacentGenerated bool
}

func (l *Location) clone() *Location {
	cp := *l
	cp.Neighbors = make(map[Direction]string, len(l.Neighbors))
	for d, id := range l.Neighbors {
		cp.Neighbors[d] = id
	}
	return &cp
}

// Graph is the in-memory location store. Safe for concurrent use; lookups
// return copies.
type Graph struct {
	mu        sync.RWMutex
	locations map[string]*Location
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{locations: make(map[string]*Location)}
}

// Add inserts a location. Returns ErrDuplicateID if the id is taken.
func (g *Graph) Add(l *Location) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("atlas: location id must not be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(l)
}

func (g *Graph) addLocked(l *Location) error {
	if _, exists := g.locations[l.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
	}
	cp := l.clone()
	if cp.Neighbors == nil {
		cp.Neighbors = make(map[Direction]string)
	}
	g.locations[l.ID] = cp
	return nil
}

// Get returns a copy of the location with the given id.
func (g *Graph) Get(id string) (*Location, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.locations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.clone(), nil
}

// Contains reports whether id exists in the graph.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.locations[id]
	return ok
}

// Connect links a and b in the given direction from a's perspective, writing
// both sides of the link. Connecting a direction that already has a link is
// a no-op, so established geography is never rewired.
func (g *Graph) Connect(aID string, dir Direction, bID string) error {
	if !dir.IsValid() {
		return fmt.Errorf("atlas: invalid direction %q", dir)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connectLocked(aID, dir, bID)
}

func (g *Graph) connectLocked(aID string, dir Direction, bID string) error {
	a, ok := g.locations[aID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, aID)
	}
	b, ok := g.locations[bID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, bID)
	}
	if _, linked := a.Neighbors[dir]; linked {
		return nil
	}
	a.Neighbors[dir] = bID
	b.Neighbors[dir.Opposite()] = aID
	return nil
}

// Neighbor returns the id of the location in the given direction from id.
// Returns ErrNoExit when the direction has no link.
func (g *Graph) Neighbor(id string, dir Direction) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.locations[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n, ok := l.Neighbors[dir]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrNoExit, dir, id)
	}
	return n, nil
}

// AdjacentIDs returns the ids of all linked neighbours of id, in fixed
// direction order.
func (g *Graph) AdjacentIDs(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.locations[id]
	if !ok {
		return nil
	}
	var out []string
	for _, d := range Directions {
		if n, ok := l.Neighbors[d]; ok {
			out = append(out, n)
		}
	}
	return out
}
