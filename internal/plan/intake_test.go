package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medplan/medplan-api/internal/model"
)

func TestSetCellCreatesIntermediateMaps(t *testing.T) {
	tree := make(model.IntakeTree)

	SetCell(tree, "2026-08-31", "med1", model.SlotMorning, model.NewIntakeCell(model.IntakeTaken, 123))

	assert.Equal(t, model.IntakeTaken, CellValue(tree, "2026-08-31", "med1", model.SlotMorning))
}

func TestCellValueAbsentIsPending(t *testing.T) {
	tree := make(model.IntakeTree)
	assert.Equal(t, model.IntakePending, CellValue(tree, "2026-08-31", "med1", model.SlotMorning))
}

func TestClearCellPrunesEmptyParents(t *testing.T) {
	tree := make(model.IntakeTree)
	SetCell(tree, "2026-08-31", "med1", model.SlotMorning, model.NewIntakeCell(model.IntakeTaken, 1))
	SetCell(tree, "2026-08-31", "med1", model.SlotNight, model.NewIntakeCell(model.IntakeMissed, 2))

	ClearCell(tree, "2026-08-31", "med1", model.SlotMorning)
	assert.Contains(t, tree, "2026-08-31", "day survives while a sibling slot remains")

	ClearCell(tree, "2026-08-31", "med1", model.SlotNight)
	assert.NotContains(t, tree, "2026-08-31", "empty med map cascades to delete the day")
}

func TestClearCellMissingIsNoOp(t *testing.T) {
	tree := make(model.IntakeTree)
	ClearCell(tree, "2026-08-31", "med1", model.SlotMorning)
	assert.Empty(t, tree)
}

func TestPruneEmptyLeavesPopulatedMapsAlone(t *testing.T) {
	tree := model.IntakeTree{
		"2026-08-31": model.DayIntake{
			"med1": model.MedIntake{model.SlotNoon: model.NewIntakeCell(model.IntakeTaken, 1)},
			"med2": model.MedIntake{},
		},
	}

	PruneEmpty(tree, "2026-08-31", "med2")
	assert.NotContains(t, tree["2026-08-31"], "med2")
	assert.Contains(t, tree["2026-08-31"], "med1")
}
