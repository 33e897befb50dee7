package character

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a character id does not exist in the store.
	ErrNotFound = errors.New("character: not found")

	// ErrDuplicateID is returned when adding a character whose id already exists.
	ErrDuplicateID = errors.New("character: duplicate id")
)

// Store is an in-memory character registry. All methods are safe for
// concurrent use. Characters returned by lookup methods are copies.
type Store struct {
	mu         sync.RWMutex
	characters map[string]*Character
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{characters: make(map[string]*Character)}
}

// Add inserts c. Returns ErrDuplicateID if the id is taken.
func (s *Store) Add(c *Character) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("character: id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.characters[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	cp := c.clone()
	if cp.Statuses == nil {
		cp.Statuses = make(map[string]Status)
	}
	cp.Trust = clampTrust(cp.Trust)
	s.characters[c.ID] = cp
	return nil
}

// Get returns a copy of the character with the given id.
func (s *Store) Get(id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

// IDs returns all character ids in no particular order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.characters))
	for id := range s.characters {
		ids = append(ids, id)
	}
	return ids
}

// Name returns the display name for id, or the id itself when unknown.
// Prompt assembly prefers a raw id over an error mid-sentence.
func (s *Store) Name(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.characters[id]; ok {
		return c.Name
	}
	return id
}

// AtLocation returns the ids of all characters whose location matches locID,
// sorted for deterministic prompt ordering.
func (s *Store) AtLocation(locID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, c := range s.characters {
		if c.Location == locID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// SetLocation moves a character.
func (s *Store) SetLocation(id, locID string) error {
	return s.mutate(id, func(c *Character) {
		c.Location = locID
	})
}

// AdjustTrust shifts trust by delta, clamped to [TrustMin, TrustMax].
// Returns the new trust value.
func (s *Store) AdjustTrust(id string, delta int) (int, error) {
	var trust int
	err := s.mutate(id, func(c *Character) {
		c.Trust = clampTrust(c.Trust + delta)
		trust = c.Trust
	})
	return trust, err
}

// SetStatus applies a temporary status. duration is in turns; nil means the
// status persists until removed. Re-applying a status refreshes its duration.
func (s *Store) SetStatus(id, status string, duration *int) error {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return fmt.Errorf("character: status name must not be empty")
	}
	var d *int
	if duration != nil {
		v := *duration
		d = &v
	}
	return s.mutate(id, func(c *Character) {
		c.Statuses[status] = Status{Duration: d}
	})
}

// RemoveStatus clears a status. Removing an absent status is a no-op.
func (s *Store) RemoveStatus(id, status string) error {
	return s.mutate(id, func(c *Character) {
		delete(c.Statuses, strings.TrimSpace(strings.ToLower(status)))
	})
}

// TickStatuses decrements every finite status duration on every character and
// drops the ones that expire. Called once per completed turn.
func (s *Store) TickStatuses() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.characters {
		for name, st := range c.Statuses {
			if st.Duration == nil {
				continue
			}
			*st.Duration--
			if *st.Duration <= 0 {
				delete(c.Statuses, name)
				slog.Debug("status expired", "character", id, "status", name)
			}
		}
	}
}

// AddItem appends an item to the character's inventory.
func (s *Store) AddItem(id, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return fmt.Errorf("character: item must not be empty")
	}
	return s.mutate(id, func(c *Character) {
		c.Inventory = append(c.Inventory, item)
	})
}

// RemoveItem removes the first inventory entry equal to item
// (case-insensitive). Reports whether anything was removed.
func (s *Store) RemoveItem(id, item string) (bool, error) {
	removed := false
	err := s.mutate(id, func(c *Character) {
		for i, have := range c.Inventory {
			if strings.EqualFold(have, item) {
				c.Inventory = slices.Delete(c.Inventory, i, i+1)
				removed = true
				return
			}
		}
	})
	return removed, err
}

// SetFollowing marks whether the character travels with the player.
func (s *Store) SetFollowing(id string, following bool) error {
	return s.mutate(id, func(c *Character) {
		c.Following = following
	})
}

// AppendUtterance appends one entry to the character's dialogue history.
// History is append-only; there is no removal API.
func (s *Store) AppendUtterance(id string, u Utterance) error {
	return s.mutate(id, func(c *Character) {
		c.DialogueHistory = append(c.DialogueHistory, u)
	})
}

// History returns a copy of the character's full dialogue history.
func (s *Store) History(id string) ([]Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return append([]Utterance(nil), c.DialogueHistory...), nil
}

// mutate runs fn against the live character record under the write lock.
func (s *Store) mutate(id string, fn func(*Character)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.characters[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(c)
	return nil
}

func clampTrust(v int) int {
	return min(max(v, TrustMin), TrustMax)
}
