package conversation

import (
	"testing"
)

// TestInitializeSlots tests slot creation from a missing-parameter list.
func TestInitializeSlots(t *testing.T) {
	state := InitializeSlots("deploy-workflow", []string{"environment", "service"})

	if state.Complete {
		t.Error("Expected incomplete state")
	}
	if len(state.Slots) != 2 {
		t.Fatalf("Expected 2 slots, got %d", len(state.Slots))
	}
	if state.CurrentSlot != "environment" {
		t.Errorf("Expected currentSlot environment, got %q", state.CurrentSlot)
	}
	if state.NextPrompt == "" {
		t.Error("Expected a prompt for the first slot")
	}
}

// TestInitializeSlotsEmpty tests that no missing parameters means complete.
func TestInitializeSlotsEmpty(t *testing.T) {
	state := InitializeSlots("deploy-workflow", nil)
	if !state.Complete || state.CurrentSlot != "" {
		t.Errorf("Expected complete empty state, got %+v", state)
	}
}

// TestSlotRoundTrip tests the full fill cycle: reject, stay put, accept,
// advance, complete.
func TestSlotRoundTrip(t *testing.T) {
	state := InitializeSlots("deploy-workflow", []string{"environment", "service"})

	// Invalid environment is rejected without state change.
	ok, err := FillSlot(state, "environment", "the moon")
	if err != nil {
		t.Fatalf("FillSlot failed: %v", err)
	}
	if ok {
		t.Error("Expected rejection of invalid environment")
	}
	if state.CurrentSlot != "environment" || state.Slots[0].Filled {
		t.Errorf("Rejected fill mutated state: %+v", state)
	}

	IncrementAttempts(state)
	if state.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", state.Attempts)
	}

	// Valid environment is accepted, attempts reset, cursor advances.
	ok, err = FillSlot(state, "environment", "production")
	if err != nil || !ok {
		t.Fatalf("Expected acceptance, got ok=%v err=%v", ok, err)
	}
	if state.Attempts != 0 {
		t.Errorf("Expected attempts reset, got %d", state.Attempts)
	}
	if state.CurrentSlot != "service" {
		t.Errorf("Expected cursor on service, got %q", state.CurrentSlot)
	}

	ok, err = FillSlot(state, "service", "api-service")
	if err != nil || !ok {
		t.Fatalf("Expected acceptance, got ok=%v err=%v", ok, err)
	}
	if !state.Complete || state.CurrentSlot != "" || state.NextPrompt != "" {
		t.Errorf("Expected complete state, got %+v", state)
	}
}

// TestFillSlotUnknownName tests that only unknown slots produce errors.
func TestFillSlotUnknownName(t *testing.T) {
	state := InitializeSlots("deploy-workflow", []string{"environment"})
	if _, err := FillSlot(state, "nonsense", "x"); err == nil {
		t.Error("Expected error for unknown slot")
	}
}

// TestFillSlotValidation exercises each fail-closed constraint.
func TestFillSlotValidation(t *testing.T) {
	tests := []struct {
		name  string
		slot  string
		value string
		want  bool
	}{
		{"empty rejected", "environment", "", false},
		{"allowed value accepted", "environment", "staging", true},
		{"case-insensitive allowed", "environment", "Production", true},
		{"unknown env rejected", "environment", "mars", false},
		{"service pattern accepted", "service", "auth-service", true},
		{"service uppercase rejected", "service", "AuthService", false},
		{"service too short rejected", "service", "a", false},
	}

	for _, tt := range tests {
		state := InitializeSlots("deploy-workflow", []string{"environment", "service"})
		ok, err := FillSlot(state, tt.slot, tt.value)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if ok != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, ok, tt.want)
		}
	}
}

// TestExhausted tests the attempt budget helper.
func TestExhausted(t *testing.T) {
	state := InitializeSlots("deploy-workflow", []string{"environment"})
	for i := 0; i < maxSlotAttempts; i++ {
		if Exhausted(state) {
			t.Fatalf("Exhausted too early at attempt %d", i)
		}
		IncrementAttempts(state)
	}
	if !Exhausted(state) {
		t.Error("Expected exhausted state")
	}

	if ok, _ := FillSlot(state, "environment", "production"); !ok {
		t.Fatal("Expected acceptance")
	}
	if Exhausted(state) {
		t.Error("Complete state cannot be exhausted")
	}
}
