package atlas

import (
	"errors"
	"testing"
)

func TestDirectionOpposite(t *testing.T) {
	t.Parallel()

	pairs := map[Direction]Direction{
		North: South,
		South: North,
		East:  West,
		West:  East,
	}
	for d, want := range pairs {
		if got := d.Opposite(); got != want {
			t.Errorf("%s.Opposite() = %s, want %s", d, got, want)
		}
	}
}

func TestGraphAddGet(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	if err := g.Add(&Location{ID: "forest_edge", Name: "Forest Edge"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := g.Add(&Location{ID: "forest_edge"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add() duplicate error = %v, want ErrDuplicateID", err)
	}

	got, err := g.Get("forest_edge")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Name = "mutated"
	again, _ := g.Get("forest_edge")
	if again.Name != "Forest Edge" {
		t.Error("Get() must return a copy")
	}

	if _, err := g.Get("nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nowhere) error = %v, want ErrNotFound", err)
	}
}

func TestConnectIsBidirectional(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"a", "b"} {
		if err := g.Add(&Location{ID: id, Name: id}); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	if err := g.Connect("a", North, "b"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	n, err := g.Neighbor("a", North)
	if err != nil || n != "b" {
		t.Errorf("Neighbor(a, north) = %q, %v, want b", n, err)
	}
	s, err := g.Neighbor("b", South)
	if err != nil || s != "a" {
		t.Errorf("Neighbor(b, south) = %q, %v, want a", s, err)
	}

	if _, err := g.Neighbor("a", East); !errors.Is(err, ErrNoExit) {
		t.Errorf("Neighbor(a, east) error = %v, want ErrNoExit", err)
	}
	if err := g.Connect("a", "upward", "b"); err == nil {
		t.Error("Connect() with invalid direction should fail")
	}
}

func TestConnectKeepsExistingLinks(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		if err := g.Add(&Location{ID: id, Name: id}); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	if err := g.Connect("a", North, "b"); err != nil {
		t.Fatal(err)
	}

	// A second connect in the same direction is a no-op.
	if err := g.Connect("a", North, "c"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	n, err := g.Neighbor("a", North)
	if err != nil || n != "b" {
		t.Errorf("Neighbor(a, north) = %q, %v, want original link kept", n, err)
	}
	if _, err := g.Neighbor("c", South); !errors.Is(err, ErrNoExit) {
		t.Errorf("Neighbor(c, south) error = %v, want no back-link written", err)
	}
}

func TestAdjacentIDs(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"hub", "n", "e"} {
		if err := g.Add(&Location{ID: id, Name: id}); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	if err := g.Connect("hub", North, "n"); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("hub", East, "e"); err != nil {
		t.Fatal(err)
	}

	got := g.AdjacentIDs("hub")
	if len(got) != 2 || got[0] != "n" || got[1] != "e" {
		t.Errorf("AdjacentIDs() = %v, want [n e] in direction order", got)
	}

	if got := g.AdjacentIDs("nowhere"); got != nil {
		t.Errorf("AdjacentIDs(nowhere) = %v, want nil", got)
	}
}
