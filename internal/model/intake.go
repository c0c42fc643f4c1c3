package model

import "encoding/json"

// Slot is one of the four fixed times of day a dose can be scheduled at.
type Slot string

const (
	SlotMorning Slot = "morning"
	SlotNoon    Slot = "noon"
	SlotEvening Slot = "evening"
	SlotNight   Slot = "night"
)

// Slots lists all slots in day order.
var Slots = []Slot{SlotMorning, SlotNoon, SlotEvening, SlotNight}

// Valid reports whether s is one of the four recognized slot keys.
func (s Slot) Valid() bool {
	switch s {
	case SlotMorning, SlotNoon, SlotEvening, SlotNight:
		return true
	}
	return false
}

// Intake states. Pending (0) is never stored; it is represented by the
// absence of a cell.
const (
	IntakePending = 0
	IntakeTaken   = 1
	IntakeMissed  = 2
)

// IntakeCell is one recorded intake outcome for a (date, medication, slot)
// triple. Stored documents contain three historic encodings: a bare number,
// a boolean, or the current {state, ts} object. All three decode here;
// Value normalizes them to 0|1|2.
type IntakeCell struct {
	State int   `json:"state"`
	Ts    int64 `json:"ts,omitempty"`

	// bare marks the legacy numeric encoding so a document round-trips the
	// way it was written.
	bare bool
}

// NewIntakeCell returns a cell in the current object encoding.
func NewIntakeCell(state int, ts int64) IntakeCell {
	return IntakeCell{State: state, Ts: ts}
}

// BareIntakeCell returns a cell in the legacy numeric encoding.
func BareIntakeCell(state int) IntakeCell {
	return IntakeCell{State: state, bare: true}
}

// Value returns the normalized logical state: 1 and 2 pass through, anything
// else is pending.
func (c IntakeCell) Value() int {
	if c.State == IntakeTaken || c.State == IntakeMissed {
		return c.State
	}
	return IntakePending
}

func (c IntakeCell) MarshalJSON() ([]byte, error) {
	if c.bare {
		return json.Marshal(c.State)
	}
	type cell IntakeCell
	return json.Marshal(cell(c))
}

func (c *IntakeCell) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = IntakeCell{State: n, bare: true}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		state := IntakePending
		if b {
			state = IntakeTaken
		}
		*c = IntakeCell{State: state, bare: true}
		return nil
	}

	type cell IntakeCell
	var obj cell
	if err := json.Unmarshal(data, &obj); err == nil {
		*c = IntakeCell(obj)
		return nil
	}

	// Unrecognized shapes read as pending rather than failing the document.
	*c = IntakeCell{}
	return nil
}

// MedIntake maps slot -> recorded cell for one medication on one day.
type MedIntake map[Slot]IntakeCell

// DayIntake maps medication id -> MedIntake for one day.
type DayIntake map[string]MedIntake

// IntakeTree is the plan.intake subtree: date key -> DayIntake. It is
// sparse; empty leaf maps are pruned on write.
type IntakeTree map[string]DayIntake

func (t *IntakeTree) UnmarshalJSON(data []byte) error {
	var m map[string]DayIntake
	if err := json.Unmarshal(data, &m); err != nil {
		// Self-heal a malformed subtree instead of rejecting the document.
		*t = nil
		return nil
	}
	*t = m
	return nil
}
