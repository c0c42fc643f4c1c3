package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medplan/medplan-api/internal/model"
	"github.com/medplan/medplan-api/internal/plan"
	"github.com/medplan/medplan-api/pkg/keylock"
	"github.com/medplan/medplan-api/pkg/logger"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, address string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[address]
	return v, ok, nil
}

func (f *fakeStore) Set(_ context.Context, address, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[address] = value
	f.sets++
	return nil
}

func (f *fakeStore) EnsureExists(_ context.Context, address, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[address]; !ok {
		f.data[address] = ""
	}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, address)
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

const testOID = "med-plan.0.patient-MaxMueller"

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, keylock.New(), "med-plan.0", nil, testLogger())
	svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)
	}
	return svc
}

func seedPatient(t *testing.T, store *fakeStore, doc *model.PatientDoc) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	store.data[testOID] = string(raw)
}

func defaultPatient() *model.PatientDoc {
	return &model.PatientDoc{
		ID:   "p1",
		Name: "Max Mueller",
		Plan: &model.Plan{
			Meds: map[string]*model.MedPlanEntry{
				"med1": {
					Times:  model.SlotFlags{Morning: true, Evening: true},
					Repeat: model.Repeat{Type: model.RepeatDaily, Every: 1},
					Dose:   model.Dose{Mode: model.DoseFixed, Unit: "tbl", Fixed: 2},
					Packages: []*model.Package{
						{ID: "a", CreatedTs: 1000, Total: 10, Current: 2},
						{ID: "b", CreatedTs: 2000, Total: 10, Current: 10},
					},
				},
			},
		},
	}
}

func loadPatient(t *testing.T, store *fakeStore) *model.PatientDoc {
	t.Helper()
	var doc model.PatientDoc
	require.NoError(t, json.Unmarshal([]byte(store.data[testOID]), &doc))
	doc.Normalize()
	return &doc
}

func takeRequest(state interface{}) *model.SetIntakeStateRequest {
	return &model.SetIntakeStateRequest{
		PatientOID:   testOID,
		Date:         "2026-08-31",
		MedicationID: "med1",
		Slot:         "morning",
		State:        state,
	}
}

func TestSetIntakeStateValidation(t *testing.T) {
	svc := newTestService(newFakeStore())
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*model.SetIntakeStateRequest)
		wantErr string
	}{
		{"missing oid", func(r *model.SetIntakeStateRequest) { r.PatientOID = "  " }, "patientOid missing"},
		{"foreign namespace", func(r *model.SetIntakeStateRequest) { r.PatientOID = "other.1.patient-X" }, "patientOid not in namespace: med-plan.0"},
		{"bad date", func(r *model.SetIntakeStateRequest) { r.Date = "31.08.2026" }, "date must be YYYY-MM-DD"},
		{"missing medication", func(r *model.SetIntakeStateRequest) { r.MedicationID = "" }, "medicationId missing"},
		{"bad slot", func(r *model.SetIntakeStateRequest) { r.Slot = "brunch" }, "slot invalid (morning|noon|evening|night)"},
		{"bad state", func(r *model.SetIntakeStateRequest) { r.State = float64(5) }, "state invalid (0|1|2)"},
		{"fractional state", func(r *model.SetIntakeStateRequest) { r.State = 1.5 }, "state invalid (0|1|2)"},
		{"bad ts", func(r *model.SetIntakeStateRequest) { r.Ts = float64(-5) }, "ts invalid (epoch ms)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := takeRequest(float64(1))
			tc.mutate(req)

			err := svc.SetIntakeState(ctx, req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantErr, verr.Error())
		})
	}
}

func TestSetIntakeStateAcceptsStringEncodings(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)

	req := takeRequest("1")
	req.Ts = "1756623600000"
	require.NoError(t, svc.SetIntakeState(context.Background(), req))

	doc := loadPatient(t, store)
	cell := doc.Plan.Intake["2026-08-31"]["med1"][model.SlotMorning]
	assert.Equal(t, model.IntakeTaken, cell.Value())
	assert.Equal(t, int64(1756623600000), cell.Ts)
}

func TestSetIntakeStateTakenConsumesOldestFirst(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)

	require.NoError(t, svc.SetIntakeState(context.Background(), takeRequest(float64(1))))

	doc := loadPatient(t, store)
	pkgs := doc.Plan.Meds["med1"].Packages
	assert.Equal(t, 0.0, pkgs[0].Current)
	assert.Equal(t, 10.0, pkgs[1].Current)
}

func TestSetIntakeStateTakenTwiceConsumesOnce(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(1))))
	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(1))))

	doc := loadPatient(t, store)
	pkgs := doc.Plan.Meds["med1"].Packages
	// 2 units total, not 4: old==new means delta 0.
	assert.Equal(t, 0.0, pkgs[0].Current)
	assert.Equal(t, 10.0, pkgs[1].Current)
}

func TestSetIntakeStateUndoRefundsAndPrunes(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(1))))
	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(0))))

	doc := loadPatient(t, store)
	pkgs := doc.Plan.Meds["med1"].Packages
	// Refund fills the oldest non-full package first.
	assert.Equal(t, 2.0, pkgs[0].Current)
	assert.Equal(t, 10.0, pkgs[1].Current)

	// Cell removed, empty maps pruned away.
	assert.Equal(t, model.IntakePending, plan.CellValue(doc.Plan.Intake, "2026-08-31", "med1", model.SlotMorning))
	assert.Empty(t, doc.Plan.Intake)
}

func TestSetIntakeStateMissedNeverMovesStock(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(2))))
	require.NoError(t, svc.SetIntakeState(ctx, takeRequest(float64(0))))

	doc := loadPatient(t, store)
	assert.Equal(t, 2.0, doc.Plan.Meds["med1"].Packages[0].Current)
	assert.Equal(t, 10.0, doc.Plan.Meds["med1"].Packages[1].Current)
}

func TestSetIntakeStateUsesNowWhenTsAbsent(t *testing.T) {
	store := newFakeStore()
	seedPatient(t, store, defaultPatient())
	svc := newTestService(store)

	require.NoError(t, svc.SetIntakeState(context.Background(), takeRequest(float64(2))))

	doc := loadPatient(t, store)
	cell := doc.Plan.Intake["2026-08-31"]["med1"][model.SlotMorning]
	assert.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local).UnixMilli(), cell.Ts)
}

func TestSetIntakeStateEmptyPatient(t *testing.T) {
	svc := newTestService(newFakeStore())

	err := svc.SetIntakeState(context.Background(), takeRequest(float64(1)))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "patient state empty: "+testOID, verr.Error())
}

func TestSetIntakeStateInvalidJSON(t *testing.T) {
	store := newFakeStore()
	store.data[testOID] = "{nope"
	svc := newTestService(store)

	err := svc.SetIntakeState(context.Background(), takeRequest(float64(1)))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "patient JSON invalid: "+testOID, verr.Error())
}

func TestSetIntakeStateStorageErrorIsNotValidation(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	svc := newTestService(store)

	err := svc.SetIntakeState(context.Background(), takeRequest(float64(1)))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestSetIntakeStateReadsLegacyCell(t *testing.T) {
	store := newFakeStore()
	doc := defaultPatient()
	doc.Plan.Intake = model.IntakeTree{
		"2026-08-31": model.DayIntake{
			"med1": model.MedIntake{model.SlotMorning: model.BareIntakeCell(model.IntakeTaken)},
		},
	}
	seedPatient(t, store, doc)
	svc := newTestService(store)

	// Legacy numeric 1 counts as taken: clearing it must refund.
	require.NoError(t, svc.SetIntakeState(context.Background(), takeRequest(float64(0))))

	got := loadPatient(t, store)
	assert.Equal(t, 4.0, got.Plan.Meds["med1"].Packages[0].Current)
}
