package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/medplan/medplan-api/internal/model"
	"github.com/medplan/medplan-api/internal/plan"
	"github.com/medplan/medplan-api/internal/repository"
	"github.com/medplan/medplan-api/pkg/keylock"
	"github.com/medplan/medplan-api/pkg/logger"
	"github.com/medplan/medplan-api/pkg/metrics"
)

// ValidationError is a rejected request. The message is the plain string
// the protocol returns to the caller; the first failing check wins and
// nothing is written.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErr(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Service owns every mutation of patient documents triggered by commands.
// All read-modify-write cycles take the per-address lock shared with the
// reconciler, so a command and a scan on the same patient never interleave.
type Service struct {
	store     repository.StateStore
	locks     *keylock.KeyLock
	namespace string
	metrics   *metrics.Metrics
	logger    *logger.Logger

	now func() time.Time
}

func NewService(store repository.StateStore, locks *keylock.KeyLock, namespace string, m *metrics.Metrics, l *logger.Logger) *Service {
	return &Service{
		store:     store,
		locks:     locks,
		namespace: namespace,
		metrics:   m,
		logger:    l.WithComponent("intake"),
		now:       time.Now,
	}
}

// Namespace returns the adapter namespace this instance is authoritative for.
func (s *Service) Namespace() string { return s.namespace }

// SetIntakeState validates and applies one intake state transition: it
// resolves the previous cell state, moves stock for taken-transitions,
// patches the intake tree and persists the whole document.
func (s *Service) SetIntakeState(ctx context.Context, req *model.SetIntakeStateRequest) error {
	oid := req.PatientOID
	if strings.TrimSpace(oid) == "" {
		return validationErr("patientOid missing")
	}
	if !strings.HasPrefix(oid, s.namespace+".") {
		return validationErr("patientOid not in namespace: %s", s.namespace)
	}
	if !plan.ValidDateKey(req.Date) {
		return validationErr("date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(req.MedicationID) == "" {
		return validationErr("medicationId missing")
	}
	slot := model.Slot(req.Slot)
	if !slot.Valid() {
		return validationErr("slot invalid (morning|noon|evening|night)")
	}
	state, ok := normalizeState(req.State)
	if !ok {
		return validationErr("state invalid (0|1|2)")
	}
	ts, ok := normalizeTs(req.Ts)
	if !ok {
		return validationErr("ts invalid (epoch ms)")
	}

	s.locks.Lock(oid)
	defer s.locks.Unlock(oid)

	if err := s.store.EnsureExists(ctx, oid, "Patient intake patch"); err != nil {
		return fmt.Errorf("failed to provision patient state: %w", err)
	}

	raw, found, err := s.store.Get(ctx, oid)
	if err != nil {
		return fmt.Errorf("failed to read patient state: %w", err)
	}
	if !found || raw == "" {
		return validationErr("patient state empty: %s", oid)
	}

	var doc model.PatientDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return validationErr("patient JSON invalid: %s", oid)
	}
	doc.Normalize()

	oldState := plan.CellValue(doc.Plan.Intake, req.Date, req.MedicationID, slot)
	dose := plan.DoseFor(&doc, req.MedicationID, slot)
	delta := plan.StockDelta(oldState, state, dose)
	if delta != 0 {
		plan.ApplyDelta(&doc, req.MedicationID, delta)
		s.countStock(delta)
	}

	if state == model.IntakePending {
		plan.ClearCell(doc.Plan.Intake, req.Date, req.MedicationID, slot)
	} else {
		useTs := ts
		if useTs == 0 {
			useTs = s.now().UnixMilli()
		}
		plan.SetCell(doc.Plan.Intake, req.Date, req.MedicationID, slot, model.NewIntakeCell(state, useTs))
	}

	out, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal patient state: %w", err)
	}
	if err := s.store.Set(ctx, oid, string(out)); err != nil {
		return fmt.Errorf("failed to write patient state: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IntakeTransitions.WithLabelValues(strconv.Itoa(state)).Inc()
	}
	s.logger.Debug("intake state set",
		"patient", oid, "date", req.Date, "medication", req.MedicationID,
		"slot", req.Slot, "state", state)

	return nil
}

func (s *Service) countStock(delta float64) {
	if s.metrics == nil {
		return
	}
	if delta < 0 {
		s.metrics.StockConsumed.Add(-delta)
	} else {
		s.metrics.StockRefunded.Add(delta)
	}
}

// normalizeState accepts the 0|1|2 state as a JSON number or string.
func normalizeState(v interface{}) (int, bool) {
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}

	if n != model.IntakePending && n != model.IntakeTaken && n != model.IntakeMissed {
		return 0, false
	}
	return n, true
}

// normalizeTs accepts an optional epoch-ms timestamp as number or string.
// Returns 0 when absent.
func normalizeTs(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 || t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil || parsed <= 0 {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
