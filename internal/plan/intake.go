package plan

import "github.com/medplan/medplan-api/internal/model"

// The intake tree is sparse: cells exist only once something was recorded,
// and empty leaf maps are pruned eagerly so the stored document never
// accumulates hollow days.

// CellValue reads the normalized logical state of one (date, medication,
// slot) cell. An absent cell is pending.
func CellValue(tree model.IntakeTree, dateKey, medID string, slot model.Slot) int {
	cell, ok := tree[dateKey][medID][slot]
	if !ok {
		return model.IntakePending
	}
	return cell.Value()
}

// SetCell writes one cell, creating intermediate maps as needed.
func SetCell(tree model.IntakeTree, dateKey, medID string, slot model.Slot, cell model.IntakeCell) {
	day, ok := tree[dateKey]
	if !ok {
		day = make(model.DayIntake)
		tree[dateKey] = day
	}
	med, ok := day[medID]
	if !ok {
		med = make(model.MedIntake)
		day[medID] = med
	}
	med[slot] = cell
}

// ClearCell removes one cell and prunes emptied parents: an empty
// medication map goes, and with it an empty day map.
func ClearCell(tree model.IntakeTree, dateKey, medID string, slot model.Slot) {
	med, ok := tree[dateKey][medID]
	if !ok {
		return
	}
	delete(med, slot)
	PruneEmpty(tree, dateKey, medID)
}

// PruneEmpty deletes the medication map when it is empty and cascades to
// the day map.
func PruneEmpty(tree model.IntakeTree, dateKey, medID string) {
	day, ok := tree[dateKey]
	if !ok {
		return
	}
	if med, ok := day[medID]; ok && len(med) == 0 {
		delete(day, medID)
	}
	if len(day) == 0 {
		delete(tree, dateKey)
	}
}
