package character

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("foe fields follow the archetype profile", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		g := NewGenerator(s, testRNG())

		id, err := g.Generate(ArchetypeFoe, "dark_cave", "")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if !strings.HasPrefix(id, "foe_") {
			t.Errorf("id = %q, want foe_ prefix", id)
		}

		c, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if c.Trust != -50 {
			t.Errorf("Trust = %d, want archetype initial -50", c.Trust)
		}
		if c.Location != "dark_cave" {
			t.Errorf("Location = %q, want dark_cave", c.Location)
		}
		if len(c.Traits) != 2 {
			t.Errorf("Traits = %v, want 2 per foe profile", c.Traits)
		}
		if n := len(c.Inventory); n < 1 || n > 3 {
			t.Errorf("Inventory = %v, want 1-3 items", c.Inventory)
		}
		if c.Stats.Strength != 10 || c.Stats.Charisma != 10 {
			t.Errorf("Stats = %+v, want baseline 10/10", c.Stats)
		}
	})

	t.Run("name hint wins and shapes the id", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		g := NewGenerator(s, testRNG())

		id, err := g.Generate(ArchetypeCompanion, "forest_edge", "Mira of the Vale")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if id != "companion_mira_of_the_vale" {
			t.Errorf("id = %q, want companion_mira_of_the_vale", id)
		}
		c, _ := s.Get(id)
		if c.Name != "Mira of the Vale" {
			t.Errorf("Name = %q, want the hint", c.Name)
		}
	})

	t.Run("collision appends a random suffix", func(t *testing.T) {
		t.Parallel()
		s := NewStore()
		g := NewGenerator(s, testRNG())

		first, err := g.Generate(ArchetypeTownsperson, "square", "Bram")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		second, err := g.Generate(ArchetypeTownsperson, "square", "Bram")
		if err != nil {
			t.Fatalf("Generate() second error = %v", err)
		}
		if first == second {
			t.Errorf("ids collide: %q", first)
		}
		if !strings.HasPrefix(second, "townsperson_bram_") {
			t.Errorf("second id = %q, want suffixed townsperson_bram_*", second)
		}
	})

	t.Run("unknown archetype", func(t *testing.T) {
		t.Parallel()
		g := NewGenerator(NewStore(), testRNG())
		if _, err := g.Generate(Archetype("dragon"), "lair", ""); err == nil {
			t.Error("Generate(dragon) error = nil, want error")
		}
	})
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Varnas the Skeptic": "varnas_the_skeptic",
		"Mira O'Dell":        "mira_o_dell",
		"  Guard 42 ":        "guard_42",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
