package reconciler

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medplan/medplan-api/internal/model"
	"github.com/medplan/medplan-api/internal/plan"
	"github.com/medplan/medplan-api/internal/repository"
	"github.com/medplan/medplan-api/internal/service/intake"
	"github.com/medplan/medplan-api/pkg/keylock"
	"github.com/medplan/medplan-api/pkg/logger"
	"github.com/medplan/medplan-api/pkg/metrics"
)

type scanMode string

const (
	modePast  scanMode = "past"
	modeToday scanMode = "today"
)

type Config struct {
	// BackfillDays is how many past days (yesterday backwards, today
	// excluded) the startup pass reconciles.
	BackfillDays int
	// Interval between today-scans.
	Interval time.Duration
	// Grace is how long after a slot's due time a missing record is
	// tolerated before it is marked missed.
	Grace time.Duration
	// SlotTimes are the local due times per slot.
	SlotTimes plan.SlotTimes
}

// Service is the missed-intake reconciler. It backfills past days once at
// startup and re-checks "today" on a fixed interval. Writes through this
// path never touch package stock: a missed dose consumes nothing.
type Service struct {
	store     repository.StateStore
	locks     *keylock.KeyLock
	namespace string
	cfg       Config
	metrics   *metrics.Metrics
	logger    *logger.Logger

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(store repository.StateStore, locks *keylock.KeyLock, namespace string, cfg Config, m *metrics.Metrics, l *logger.Logger) *Service {
	if cfg.BackfillDays <= 0 {
		cfg.BackfillDays = 7
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 120 * time.Minute
	}
	if cfg.SlotTimes == nil {
		cfg.SlotTimes = plan.DefaultSlotTimes()
	}

	return &Service{
		store:     store,
		locks:     locks,
		namespace: namespace,
		cfg:       cfg,
		metrics:   m,
		logger:    l.WithComponent("reconciler"),
		now:       time.Now,
	}
}

// Start launches the backfill pass followed by the periodic today-scan.
// Idempotent: a running reconciler is left alone.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("starting missed-intake reconciler",
		"backfill_days", s.cfg.BackfillDays, "interval", s.cfg.Interval.String())

	go s.run(runCtx, done)
}

// Stop cancels the periodic scan and waits for the running pass to finish.
// Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("missed-intake reconciler stopped")
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.Backfill(ctx)
	s.ScanToday(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanToday(ctx)
		}
	}
}

// Backfill marks every planned-but-unrecorded slot of the past N days as
// missed. Past days get no grace: the adapter was not around to ask.
func (s *Service) Backfill(ctx context.Context) {
	now := s.now()
	todayKey := plan.DayKey(now)

	dateKeys := make([]string, 0, s.cfg.BackfillDays)
	for i := 1; i <= s.cfg.BackfillDays; i++ {
		dateKeys = append(dateKeys, plan.AddDays(todayKey, -i))
	}

	s.scanAll(ctx, dateKeys, modePast, now)
}

// ScanToday checks today's due slots against their grace windows.
func (s *Service) ScanToday(ctx context.Context) {
	now := s.now()
	s.scanAll(ctx, []string{plan.DayKey(now)}, modeToday, now)
}

func (s *Service) scanAll(ctx context.Context, dateKeys []string, mode scanMode, now time.Time) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ReconcilerLatency.Observe(time.Since(start).Seconds())
			s.metrics.ReconcilerPasses.WithLabelValues(string(mode)).Inc()
		}
	}()

	for _, oid := range s.patientAddresses(ctx) {
		if ctx.Err() != nil {
			return
		}
		// One patient's bad document must not stop the others.
		if err := s.reconcilePatient(ctx, oid, dateKeys, mode, now); err != nil {
			s.logger.Warn("patient pass skipped", "patient", oid, "error", err.Error())
			if s.metrics != nil {
				s.metrics.PatientsSkipped.Inc()
			}
		}
	}
}

// patientAddresses reads the patients index. Entries may be plain address
// strings or {stateId} objects; anything outside this namespace is ignored.
func (s *Service) patientAddresses(ctx context.Context) []string {
	raw, found, err := s.store.Get(ctx, s.namespace+"."+intake.PatientsIndexState)
	if err != nil {
		s.logger.Warn("patients index read failed", "error", err.Error())
		return nil
	}
	if !found || raw == "" {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("patients index not decodable")
		return nil
	}

	prefix := s.namespace + "."
	oids := make([]string, 0, len(entries))
	for _, e := range entries {
		var addr string
		if err := json.Unmarshal(e, &addr); err != nil {
			var entry model.IndexEntry
			if err := json.Unmarshal(e, &entry); err != nil {
				continue
			}
			addr = entry.StateID
		}
		if strings.HasPrefix(addr, prefix) {
			oids = append(oids, addr)
		}
	}
	return oids
}

func (s *Service) reconcilePatient(ctx context.Context, oid string, dateKeys []string, mode scanMode, now time.Time) error {
	s.locks.Lock(oid)
	defer s.locks.Unlock(oid)

	raw, found, err := s.store.Get(ctx, oid)
	if err != nil {
		return err
	}
	if !found || raw == "" {
		return nil
	}

	var doc model.PatientDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return err
	}
	if doc.Plan == nil || len(doc.Plan.Meds) == 0 {
		return nil
	}
	doc.Normalize()

	medIDs := make([]string, 0, len(doc.Plan.Meds))
	for id := range doc.Plan.Meds {
		medIDs = append(medIDs, id)
	}
	sort.Strings(medIDs)

	changed := false
	marked := 0

	for _, dateKey := range dateKeys {
		for _, medID := range medIDs {
			med := doc.Plan.Meds[medID]
			if med == nil {
				continue
			}
			if !plan.IsDue(&doc, medID, dateKey) {
				continue
			}

			for _, slot := range model.Slots {
				if !med.Times.Active(slot) {
					continue
				}
				if plan.CellValue(doc.Plan.Intake, dateKey, medID, slot) != model.IntakePending {
					continue
				}

				if mode == modePast {
					// Legacy numeric encoding, as backfill has always
					// written it.
					plan.SetCell(doc.Plan.Intake, dateKey, medID, slot, model.BareIntakeCell(model.IntakeMissed))
					changed = true
					marked++
					continue
				}

				due, ok := s.cfg.SlotTimes.DueTime(dateKey, slot)
				if !ok {
					continue
				}
				if !now.Before(due.Add(s.cfg.Grace)) {
					// ts records when the dose was due, not when the scan
					// noticed.
					plan.SetCell(doc.Plan.Intake, dateKey, medID, slot, model.NewIntakeCell(model.IntakeMissed, due.UnixMilli()))
					changed = true
					marked++
				}
			}

			plan.PruneEmpty(doc.Plan.Intake, dateKey, medID)
		}
	}

	if !changed {
		return nil
	}

	out, err := json.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, oid, string(out)); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.MissedMarked.WithLabelValues(string(mode)).Add(float64(marked))
	}
	s.logger.Debug("missed intakes recorded", "patient", oid, "mode", string(mode), "count", marked)
	return nil
}
