package character

// archetypeProfile drives random generation for one archetype.
type archetypeProfile struct {
	traits         []string
	items          []string
	namePrefixes   []string
	maleOdds       float64
	traitCount     int
	itemCountMin   int
	itemCountMax   int
	initialTrust   int
}

// archetypeProfiles is the generation registry. Trait and item pools are
// sampled with replacement; duplicates are tolerated the same way a hurried
// storyteller would tolerate them.
var archetypeProfiles = map[Archetype]archetypeProfile{
	ArchetypeTownsperson: {
		traits:       []string{"friendly", "suspicious", "busy", "curious", "weary", "helpful", "reserved"},
		items:        []string{"apple", "bread", "hammer", "cloth", "coin", "empty bottle", "wooden bowl"},
		namePrefixes: []string{"Farmer", "Miller", "Baker", "Guard", "Innkeeper", "Merchant"},
		maleOdds:     0.5,
		traitCount:   3,
		itemCountMin: 1,
		itemCountMax: 4,
		initialTrust: 0,
	},
	ArchetypeCompanion: {
		traits:       []string{"loyal", "skeptic", "brave", "resourceful", "cautious", "optimistic", "pragmatic"},
		items:        []string{"short sword", "healing potion", "rope", "waterskin", "bedroll", "dried meat"},
		maleOdds:     0.5,
		traitCount:   3,
		itemCountMin: 2,
		itemCountMax: 5,
		initialTrust: 20,
	},
	ArchetypeFoe: {
		traits:       []string{"aggressive", "cunning", "greedy", "ruthless", "cowardly", "territorial"},
		items:        []string{"rusty dagger", "crude club", "tattered rags", "stolen coin"},
		maleOdds:     0.6,
		traitCount:   2,
		itemCountMin: 1,
		itemCountMax: 3,
		initialTrust: -50,
	},
	ArchetypeLoveInterest: {
		traits:       []string{"charming", "shy", "witty", "kind", "mysterious", "adventurous"},
		items:        []string{"flower", "book", "locket", "perfume", "small gift"},
		maleOdds:     0,
		traitCount:   3,
		itemCountMin: 1,
		itemCountMax: 2,
		initialTrust: 10,
	},
}

// InitialTrust returns the trust score a freshly generated character of the
// given archetype starts with. Unknown archetypes start neutral.
func InitialTrust(a Archetype) int {
	if p, ok := archetypeProfiles[a]; ok {
		return p.initialTrust
	}
	return 0
}
