package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intentflow/intentflow/internal/models"
)

// maxSlotAttempts bounds how many failed fill attempts a slot-filling
// exchange tolerates before callers should abandon it.
const maxSlotAttempts = 3

// InitializeSlots builds a slot-filling state for a workflow's missing
// required parameters. CurrentSlot and NextPrompt point at the first slot.
func InitializeSlots(workflow string, missing []string) *models.SlotFillingState {
	state := &models.SlotFillingState{
		Workflow: workflow,
		Complete: len(missing) == 0,
	}

	for _, name := range missing {
		state.Slots = append(state.Slots, models.Slot{
			Name:       name,
			Type:       "string",
			Required:   true,
			Prompt:     promptFor(name),
			Validation: validationFor(name),
		})
	}

	advance(state)
	return state
}

// FillSlot attempts to fill the named slot. The boolean reports whether the
// value was accepted; a rejected value leaves the state untouched. An
// accepted value resets the attempt counter. Errors are reserved for unknown
// slot names.
func FillSlot(state *models.SlotFillingState, name, value string) (bool, error) {
	var slot *models.Slot
	for i := range state.Slots {
		if state.Slots[i].Name == name {
			slot = &state.Slots[i]
			break
		}
	}
	if slot == nil {
		return false, fmt.Errorf("unknown slot: %s", name)
	}

	value = strings.TrimSpace(value)
	if !validateSlot(slot.Validation, value) {
		return false, nil
	}

	slot.Value = value
	slot.Filled = true
	state.Attempts = 0
	advance(state)
	return true, nil
}

// IncrementAttempts counts one failed clarification exchange. It only counts;
// callers decide when the budget is spent.
func IncrementAttempts(state *models.SlotFillingState) {
	state.Attempts++
}

// Exhausted reports whether the exchange has burned through its attempt
// budget without completing.
func Exhausted(state *models.SlotFillingState) bool {
	return !state.Complete && state.Attempts >= maxSlotAttempts
}

// advance recomputes CurrentSlot, NextPrompt and Complete after a fill.
func advance(state *models.SlotFillingState) {
	for _, s := range state.Slots {
		if s.Required && !s.Filled {
			state.CurrentSlot = s.Name
			state.NextPrompt = s.Prompt
			state.Complete = false
			return
		}
	}
	state.CurrentSlot = ""
	state.NextPrompt = ""
	state.Complete = true
}

// validateSlot applies the slot's constraints fail-closed: a malformed
// pattern rejects the value rather than accepting it.
func validateSlot(v *models.SlotValidation, value string) bool {
	if value == "" {
		return false
	}
	if v == nil {
		return true
	}

	if v.MinLength > 0 && len(value) < v.MinLength {
		return false
	}
	if v.MaxLength > 0 && len(value) > v.MaxLength {
		return false
	}
	if len(v.AllowedValues) > 0 {
		found := false
		for _, allowed := range v.AllowedValues {
			if strings.EqualFold(allowed, value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return false
		}
		if !re.MatchString(value) {
			return false
		}
	}
	return true
}

// promptFor returns the clarification question for a well-known parameter
// name, falling back to a generic prompt.
func promptFor(name string) string {
	switch name {
	case "environment":
		return "Which environment should this target (development, staging or production)?"
	case "service":
		return "Which service is this for?"
	case "resource":
		return "What kind of resource?"
	case "file":
		return "Which file?"
	case "workflow":
		return "Which workflow?"
	default:
		return fmt.Sprintf("What value should %q be?", name)
	}
}

// validationFor returns baked-in constraints for well-known parameter names.
func validationFor(name string) *models.SlotValidation {
	switch name {
	case "environment":
		return &models.SlotValidation{
			AllowedValues: []string{"development", "staging", "production", "test"},
		}
	case "service":
		return &models.SlotValidation{
			Pattern:   `^[a-z][a-z0-9-]*$`,
			MinLength: 2,
			MaxLength: 63,
		}
	default:
		return nil
	}
}
