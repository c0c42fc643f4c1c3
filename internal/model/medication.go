package model

// Medication is one entry of the global medication catalog list.
type Medication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IndexEntry is one row of the patients index. StateId is the fully
// qualified state address of the patient document.
type IndexEntry struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key,omitempty"`
	StateID string `json:"stateId,omitempty"`
}

// SetIntakeStateRequest is the setIntakeState command payload. State and Ts
// accept both string and number encodings, so they bind as raw values and
// are normalized during validation.
type SetIntakeStateRequest struct {
	PatientOID   string      `json:"patientOid"`
	Date         string      `json:"date"`
	MedicationID string      `json:"medicationId"`
	Slot         string      `json:"slot"`
	State        interface{} `json:"state"`
	Ts           interface{} `json:"ts,omitempty"`
}
