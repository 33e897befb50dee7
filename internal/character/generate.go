package character

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// idCollisionRetries bounds how often Generate re-rolls the random id suffix
// before giving up.
const idCollisionRetries = 5

// Generator rolls new characters from the archetype registry. The random
// source is injected so tests can seed it.
type Generator struct {
	store *Store
	rng   *rand.Rand
}

// NewGenerator returns a Generator writing into store.
func NewGenerator(store *Store, rng *rand.Rand) *Generator {
	return &Generator{store: store, rng: rng}
}

// Generate creates a character of the given archetype at location and adds it
// to the store, returning its id. nameHint, when non-empty, is used as the
// character's name instead of a rolled one.
func (g *Generator) Generate(archetype Archetype, location, nameHint string) (string, error) {
	profile, ok := archetypeProfiles[archetype]
	if !ok {
		return "", fmt.Errorf("character: unknown archetype %q", archetype)
	}

	gender := "woman"
	if g.rng.Float64() < profile.maleOdds {
		gender = "man"
	}

	name := strings.TrimSpace(nameHint)
	if name == "" {
		prefix := string(archetype)
		if len(profile.namePrefixes) > 0 {
			prefix = profile.namePrefixes[g.rng.IntN(len(profile.namePrefixes))]
		}
		name = fmt.Sprintf("%s %s", prefix, uuid.NewString()[:4])
	}

	traits := sample(g.rng, profile.traits, profile.traitCount)
	itemCount := profile.itemCountMin
	if profile.itemCountMax > profile.itemCountMin {
		itemCount += g.rng.IntN(profile.itemCountMax - profile.itemCountMin + 1)
	}
	items := sample(g.rng, profile.items, itemCount)

	traitStr := "nondescript"
	if len(traits) > 0 {
		traitStr = strings.Join(traits, ", ")
	}

	c := &Character{
		Name:        name,
		Description: fmt.Sprintf("A %s %s named %s. They appear %s.", gender, archetype, name, traitStr),
		Archetype:   archetype,
		Gender:      gender,
		Traits:      traits,
		Location:    location,
		Inventory:   items,
		Stats:       Stats{Strength: 10, Charisma: 10},
		Trust:       profile.initialTrust,
		Statuses:    make(map[string]Status),
	}

	// Base id from archetype and sanitised name; a random suffix is appended
	// only when the plain id is already taken.
	base := fmt.Sprintf("%s_%s", archetype, sanitizeName(name))
	c.ID = base
	for attempt := 0; ; attempt++ {
		err := g.store.Add(c)
		if err == nil {
			return c.ID, nil
		}
		if attempt >= idCollisionRetries {
			return "", fmt.Errorf("character: could not allocate unique id for %q: %w", name, err)
		}
		c.ID = fmt.Sprintf("%s_%s", base, uuid.NewString()[:6])
	}
}

// sanitizeName lowercases the name and collapses every non-alphanumeric run
// into a single underscore, so "Varnas the Skeptic" becomes
// "varnas_the_skeptic".
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// sample picks n entries from pool with replacement.
func sample(rng *rand.Rand, pool []string, n int) []string {
	if len(pool) == 0 || n <= 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for range n {
		out = append(out, pool[rng.IntN(len(pool))])
	}
	return out
}
