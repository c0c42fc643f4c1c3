package model

// PatientDoc is the whole per-patient record as stored in the state store.
// Every mutation reads, patches and rewrites the full document; no component
// holds a partial copy across calls.
type PatientDoc struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Plan *Plan  `json:"plan,omitempty"`
}

type Plan struct {
	Meds   map[string]*MedPlanEntry `json:"meds"`
	Intake IntakeTree               `json:"intake,omitempty"`
}

// Normalize ensures the plan substructures exist so callers can patch them
// without nil checks. Missing or malformed subtrees are re-initialized empty.
func (p *PatientDoc) Normalize() {
	if p.Plan == nil {
		p.Plan = &Plan{}
	}
	if p.Plan.Meds == nil {
		p.Plan.Meds = make(map[string]*MedPlanEntry)
	}
	if p.Plan.Intake == nil {
		p.Plan.Intake = make(IntakeTree)
	}
}

// MedPlanEntry is one medication's schedule within a patient plan.
type MedPlanEntry struct {
	Name     string     `json:"name,omitempty"`
	Times    SlotFlags  `json:"times"`
	Repeat   Repeat     `json:"repeat"`
	Dose     Dose       `json:"dose"`
	Packages []*Package `json:"packages,omitempty"`
	Meta     *MedMeta   `json:"_meta,omitempty"`
}

// SlotFlags marks which of the four slots are active.
type SlotFlags struct {
	Morning bool `json:"morning"`
	Noon    bool `json:"noon"`
	Evening bool `json:"evening"`
	Night   bool `json:"night"`
}

// Active reports whether the given slot is enabled.
func (f SlotFlags) Active(slot Slot) bool {
	switch slot {
	case SlotMorning:
		return f.Morning
	case SlotNoon:
		return f.Noon
	case SlotEvening:
		return f.Evening
	case SlotNight:
		return f.Night
	}
	return false
}

// Repeat rule types.
const (
	RepeatDaily      = "daily"
	RepeatEveryXDays = "everyXDays"
	RepeatWeekly     = "weekly"
)

type Repeat struct {
	Type  string `json:"type"`
	Every int    `json:"every"`
}

// Dose modes.
const (
	DoseFixed   = "fixed"
	DosePerSlot = "perSlot"
)

type Dose struct {
	Mode    string       `json:"mode,omitempty"`
	Unit    string       `json:"unit,omitempty"`
	Fixed   float64      `json:"fixed,omitempty"`
	PerSlot *PerSlotDose `json:"perSlot,omitempty"`
}

type PerSlotDose struct {
	Morning float64 `json:"morning"`
	Noon    float64 `json:"noon"`
	Evening float64 `json:"evening"`
	Night   float64 `json:"night"`
}

// For returns the per-slot quantity, or 0 when unset.
func (d *PerSlotDose) For(slot Slot) float64 {
	if d == nil {
		return 0
	}
	switch slot {
	case SlotMorning:
		return d.Morning
	case SlotNoon:
		return d.Noon
	case SlotEvening:
		return d.Evening
	case SlotNight:
		return d.Night
	}
	return 0
}

// Package is a physical container of medication units. Current never drops
// below 0 or exceeds Total at rest.
type Package struct {
	ID        string  `json:"id,omitempty"`
	CreatedTs int64   `json:"createdTs"`
	Total     float64 `json:"total"`
	Current   float64 `json:"current"`
	Mark      string  `json:"mark,omitempty"`
}

// MedMeta carries optional plan metadata authored by the admin UI.
type MedMeta struct {
	StartDate string `json:"startDate,omitempty"`
}
