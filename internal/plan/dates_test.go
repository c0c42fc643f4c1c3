package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medplan/medplan-api/internal/model"
)

func TestValidDateKey(t *testing.T) {
	assert.True(t, ValidDateKey("2026-08-31"))
	assert.False(t, ValidDateKey("2026-8-31"))
	assert.False(t, ValidDateKey("2026-08-31T00:00"))
	assert.False(t, ValidDateKey("today"))
	assert.False(t, ValidDateKey(""))
}

func TestDayKey(t *testing.T) {
	d := time.Date(2026, 3, 5, 23, 59, 0, 0, time.Local)
	assert.Equal(t, "2026-03-05", DayKey(d))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2026-03-01", AddDays("2026-02-28", 1))
	assert.Equal(t, "2026-02-28", AddDays("2026-03-07", -7))
	assert.Equal(t, "2024-02-29", AddDays("2024-02-28", 1)) // leap year

	// Malformed keys pass through unchanged.
	assert.Equal(t, "not-a-date", AddDays("not-a-date", 1))
}

func TestDiffDays(t *testing.T) {
	assert.Equal(t, 0, DiffDays("2026-08-31", "2026-08-31"))
	assert.Equal(t, 1, DiffDays("2026-08-30", "2026-08-31"))
	assert.Equal(t, -3, DiffDays("2026-08-31", "2026-08-28"))
	assert.Equal(t, 365, DiffDays("2025-08-31", "2026-08-31"))
	assert.Equal(t, 0, DiffDays("garbage", "2026-08-31"))
}

func TestDiffDaysIsStableAcrossMonths(t *testing.T) {
	// Walk a year forward one day at a time; every step must be exactly 1.
	key := "2026-01-01"
	for i := 0; i < 365; i++ {
		next := AddDays(key, 1)
		require.Equal(t, 1, DiffDays(key, next), "step from %s to %s", key, next)
		key = next
	}
}

func TestParseSlotTimes(t *testing.T) {
	times := ParseSlotTimes(map[string]string{
		"morning": "06:45",
		"noon":    "nonsense",
		"night":   "25:00",
		"brunch":  "10:00",
	})

	assert.Equal(t, SlotTime{Hour: 6, Minute: 45}, times[model.SlotMorning])
	// Malformed and unknown entries keep the defaults.
	assert.Equal(t, SlotTime{Hour: 12, Minute: 30}, times[model.SlotNoon])
	assert.Equal(t, SlotTime{Hour: 22, Minute: 30}, times[model.SlotNight])
	assert.Len(t, times, 4)
}

func TestDueTime(t *testing.T) {
	times := DefaultSlotTimes()

	due, ok := times.DueTime("2026-08-31", model.SlotMorning)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 31, 8, 0, 0, 0, time.Local), due)

	_, ok = times.DueTime("bad-key", model.SlotMorning)
	assert.False(t, ok)

	_, ok = times.DueTime("2026-08-31", model.Slot("brunch"))
	assert.False(t, ok)
}
