package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medplan/medplan-api/internal/model"
)

// List/CRUD passthroughs of the command surface. List reads always answer
// with an array: absence and parse failures both come back empty rather
// than erroring, so a fresh instance renders as "no data" instead of
// failing.

const (
	// MedicationListState is the per-namespace medication catalog address
	// suffix.
	MedicationListState = "_medication"
	// PatientsIndexState is the per-namespace patients index address suffix.
	PatientsIndexState = "_patients"
)

// MedicationListAddress returns the catalog address for this instance.
func (s *Service) MedicationListAddress() string {
	return s.namespace + "." + MedicationListState
}

// PatientsIndexAddress returns the index address for this instance.
func (s *Service) PatientsIndexAddress() string {
	return s.namespace + "." + PatientsIndexState
}

func (s *Service) SetMedicationList(ctx context.Context, id string, value []model.Medication) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("id missing")
	}
	if value == nil {
		value = []model.Medication{}
	}
	return s.writeJSON(ctx, id, "Medication list", value)
}

func (s *Service) GetMedicationList(ctx context.Context, id string) ([]model.Medication, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr("id missing")
	}

	list := []model.Medication{}
	s.readJSON(ctx, id, &list)
	if list == nil {
		list = []model.Medication{}
	}
	return list, nil
}

func (s *Service) SetPatientsIndex(ctx context.Context, id string, value []model.IndexEntry) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("id missing")
	}
	if value == nil {
		value = []model.IndexEntry{}
	}
	return s.writeJSON(ctx, id, "Patients index", value)
}

func (s *Service) GetPatientsIndex(ctx context.Context, id string) ([]model.IndexEntry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr("id missing")
	}

	list := []model.IndexEntry{}
	s.readJSON(ctx, id, &list)
	if list == nil {
		list = []model.IndexEntry{}
	}
	return list, nil
}

// SetPatientData overwrites a whole patient document. The value passes
// through as-is; the admin surface owns the document shape.
func (s *Service) SetPatientData(ctx context.Context, id, displayName string, value json.RawMessage) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("id missing")
	}
	if value == nil {
		value = json.RawMessage("{}")
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	name := displayName
	if name == "" {
		name = id
	}
	if err := s.store.EnsureExists(ctx, id, "Patient "+name); err != nil {
		return fmt.Errorf("failed to provision patient state: %w", err)
	}
	if err := s.store.Set(ctx, id, string(value)); err != nil {
		return fmt.Errorf("failed to write patient state: %w", err)
	}
	return nil
}

// GetPatientData returns the stored document, or nil when absent or not a
// JSON object.
func (s *Service) GetPatientData(ctx context.Context, id string) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr("id missing")
	}

	raw, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient state: %w", err)
	}
	if !found || raw == "" {
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

func (s *Service) DeletePatientData(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("id missing")
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete patient state: %w", err)
	}
	return nil
}

func (s *Service) writeJSON(ctx context.Context, id, displayName string, value interface{}) error {
	if err := s.store.EnsureExists(ctx, id, displayName); err != nil {
		return fmt.Errorf("failed to provision state %s: %w", id, err)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", id, err)
	}
	if err := s.store.Set(ctx, id, string(out)); err != nil {
		return fmt.Errorf("failed to write state %s: %w", id, err)
	}
	return nil
}

// readJSON best-effort-decodes the value at id into dst; absence, read
// errors and malformed JSON leave dst untouched.
func (s *Service) readJSON(ctx context.Context, id string, dst interface{}) {
	raw, found, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("state read failed", "id", id, "error", err.Error())
		return
	}
	if !found || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("state value not decodable", "id", id)
	}
}
