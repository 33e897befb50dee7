package world

import (
	"strings"
	"testing"
)

func TestInventory(t *testing.T) {
	t.Parallel()

	t.Run("add and remove first match", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		s.AddItem("rope")
		s.AddItem("torch")
		s.AddItem("rope")

		if !s.RemoveItem("Rope") {
			t.Fatal("RemoveItem(Rope) = false, want true (case-insensitive)")
		}
		want := []string{"torch", "rope"}
		if len(s.Inventory) != 2 || s.Inventory[0] != want[0] || s.Inventory[1] != want[1] {
			t.Errorf("Inventory = %v, want %v", s.Inventory, want)
		}
	})

	t.Run("remove absent item is a no-op", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		s.AddItem("rope")
		if s.RemoveItem("gemstone") {
			t.Error("RemoveItem(gemstone) = true, want false")
		}
		if len(s.Inventory) != 1 {
			t.Errorf("Inventory length = %d, want 1", len(s.Inventory))
		}
	})

	t.Run("blank items are ignored", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		s.AddItem("  ")
		if len(s.Inventory) != 0 {
			t.Errorf("Inventory = %v, want empty", s.Inventory)
		}
	})
}

func TestDialogueMode(t *testing.T) {
	t.Parallel()

	t.Run("enter and leave mutate flag and partner together", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		if err := s.EnterDialogue("companion_varnas_the_skeptic"); err != nil {
			t.Fatalf("EnterDialogue() error = %v", err)
		}
		if !s.DialogueActive || s.DialoguePartner != "companion_varnas_the_skeptic" {
			t.Errorf("state = active=%v partner=%q after enter", s.DialogueActive, s.DialoguePartner)
		}

		partner := s.LeaveDialogue()
		if partner != "companion_varnas_the_skeptic" {
			t.Errorf("LeaveDialogue() = %q, want partner id", partner)
		}
		if s.DialogueActive || s.DialoguePartner != "" {
			t.Errorf("state = active=%v partner=%q after leave, want inactive/empty", s.DialogueActive, s.DialoguePartner)
		}
	})

	t.Run("double enter is rejected", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		if err := s.EnterDialogue("a"); err != nil {
			t.Fatalf("first EnterDialogue() error = %v", err)
		}
		if err := s.EnterDialogue("b"); err == nil {
			t.Error("second EnterDialogue() error = nil, want error")
		}
	})

	t.Run("empty partner is rejected", func(t *testing.T) {
		t.Parallel()
		s := NewState("forest_edge", "morning", "")
		if err := s.EnterDialogue(""); err == nil {
			t.Error("EnterDialogue(\"\") error = nil, want error")
		}
	})
}

func TestAppendSummary(t *testing.T) {
	t.Parallel()

	s := NewState("forest_edge", "morning", "The story begins.")
	s.AppendSummary("A stranger arrived.")
	s.AppendSummary("   ")

	if !strings.Contains(s.Summary, "The story begins.\n\nA stranger arrived.") {
		t.Errorf("Summary = %q, want blank-line separated fragments", s.Summary)
	}
}

func TestFlagSummary(t *testing.T) {
	t.Parallel()

	s := NewState("forest_edge", "morning", "")
	if got := s.FlagSummary(); got != "None" {
		t.Errorf("FlagSummary() = %q, want None", got)
	}

	s.SetFlag("quest_started", true)
	s.SetFlag("door_unlocked", false)
	got := s.FlagSummary()
	if !strings.Contains(got, "quest_started: true") || !strings.Contains(got, "door_unlocked: false") {
		t.Errorf("FlagSummary() = %q, want both flags rendered", got)
	}

	s.DeleteFlag("door_unlocked")
	if strings.Contains(s.FlagSummary(), "door_unlocked") {
		t.Errorf("FlagSummary() = %q, flag should be gone", s.FlagSummary())
	}
}

func TestNewStateDefaults(t *testing.T) {
	t.Parallel()

	s := NewState("forest_edge", "morning", "opening")
	if s.PlayerStats.Strength != DefaultStatValue || s.PlayerStats.Charisma != DefaultStatValue {
		t.Errorf("PlayerStats = %+v, want baseline %d", s.PlayerStats, DefaultStatValue)
	}
	if s.Flags == nil {
		t.Error("Flags map should be initialised")
	}
}
