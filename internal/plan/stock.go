package plan

import (
	"math"

	"github.com/medplan/medplan-api/internal/model"
)

// DoseFor resolves the quantity one administration of the medication
// consumes in the given slot. perSlot values win when the mode asks for
// them; a fixed dose backs up a missing per-slot value, and 1 backs up
// everything else.
func DoseFor(p *model.PatientDoc, medID string, slot model.Slot) float64 {
	med := medOf(p, medID)
	if med == nil {
		return 1
	}

	fixed := func() float64 {
		if f := med.Dose.Fixed; isFiniteDose(f) && f > 0 {
			return f
		}
		return 1
	}

	if med.Dose.Mode == model.DosePerSlot {
		if n := med.Dose.PerSlot.For(slot); isFiniteDose(n) && n > 0 {
			return n
		}
		return fixed()
	}

	return fixed()
}

// StockDelta maps an intake state transition to a package quantity change.
// Only entering or leaving "taken" moves stock; 0<->2 toggles never do.
func StockDelta(oldState, newState int, dose float64) float64 {
	if oldState != model.IntakeTaken && newState == model.IntakeTaken {
		return -dose
	}
	if oldState == model.IntakeTaken && newState != model.IntakeTaken {
		return +dose
	}
	return 0
}

// ApplyDelta consumes (delta < 0) or refunds (delta > 0) units across the
// medication's packages, oldest createdTs first. Exhaustion is silent: out
// of stock stops a consume, all-full stops a refund. Equal createdTs breaks
// ties by original slice order.
func ApplyDelta(p *model.PatientDoc, medID string, delta float64) {
	if delta == 0 {
		return
	}

	med := medOf(p, medID)
	if med == nil || len(med.Packages) == 0 {
		return
	}

	if delta < 0 {
		remaining := -delta
		for remaining > 0 {
			idx := oldestPackage(med.Packages, func(pkg *model.Package) bool {
				return pkg.Current > 0
			})
			if idx < 0 {
				break
			}
			pkg := med.Packages[idx]
			take := math.Min(pkg.Current, remaining)
			pkg.Current -= take
			remaining -= take
		}
		return
	}

	remaining := delta
	for remaining > 0 {
		idx := oldestPackage(med.Packages, func(pkg *model.Package) bool {
			return pkg.Current < pkg.Total
		})
		if idx < 0 {
			break
		}
		pkg := med.Packages[idx]
		add := math.Min(pkg.Total-pkg.Current, remaining)
		pkg.Current += add
		remaining -= add
	}
}

func oldestPackage(pkgs []*model.Package, eligible func(*model.Package) bool) int {
	bestIdx := -1
	bestTs := int64(math.MaxInt64)

	for i, pkg := range pkgs {
		if pkg == nil || !eligible(pkg) {
			continue
		}
		ts := pkg.CreatedTs
		if ts <= 0 {
			ts = math.MaxInt64 - 1
		}
		if ts < bestTs {
			bestTs = ts
			bestIdx = i
		}
	}

	return bestIdx
}

func isFiniteDose(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
