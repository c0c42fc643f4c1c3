package plan

import (
	"time"

	"github.com/medplan/medplan-api/internal/model"
)

// AnchorDateKey resolves the recurrence anchor for a medication, in order:
// an explicit plan startDate, else the earliest package createdTs, else the
// fallback (the date under evaluation, which makes every interval rule due
// on that date).
func AnchorDateKey(p *model.PatientDoc, medID, fallback string) string {
	med := medOf(p, medID)
	if med == nil {
		return fallback
	}

	if med.Meta != nil && ValidDateKey(med.Meta.StartDate) {
		return med.Meta.StartDate
	}

	var minTs int64
	for _, pkg := range med.Packages {
		if pkg == nil || pkg.CreatedTs <= 0 {
			continue
		}
		if minTs == 0 || pkg.CreatedTs < minTs {
			minTs = pkg.CreatedTs
		}
	}
	if minTs > 0 {
		return DayKey(time.UnixMilli(minTs))
	}

	return fallback
}

// IsDue reports whether the medication is scheduled on dateKey per its
// repeat rule. Unknown rule types are due: a spurious reminder is cheaper
// than a silently skipped dose.
func IsDue(p *model.PatientDoc, medID, dateKey string) bool {
	med := medOf(p, medID)
	if med == nil {
		return false
	}

	every := med.Repeat.Every
	if every < 1 {
		every = 1
	}

	switch med.Repeat.Type {
	case model.RepeatDaily:
		if every == 1 {
			return true
		}
		return dueByInterval(p, medID, dateKey, every)
	case model.RepeatEveryXDays, model.RepeatWeekly:
		// "weekly" runs on the same day-count arithmetic as everyXDays;
		// every is a number of days, not weeks. Kept as the adapter has
		// always behaved.
		return dueByInterval(p, medID, dateKey, every)
	}

	return true
}

func dueByInterval(p *model.PatientDoc, medID, dateKey string, every int) bool {
	anchor := AnchorDateKey(p, medID, dateKey)
	diff := DiffDays(anchor, dateKey)
	// The anchor may lie after dateKey; normalize the residue so negative
	// offsets land on the same grid.
	return ((diff%every)+every)%every == 0
}

func medOf(p *model.PatientDoc, medID string) *model.MedPlanEntry {
	if p == nil || p.Plan == nil {
		return nil
	}
	return p.Plan.Meds[medID]
}
