package plan

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/medplan/medplan-api/internal/model"
)

// Date keys are local-calendar days in YYYY-MM-DD form.
const dayKeyLayout = "2006-01-02"

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDateKey reports whether s is a strict YYYY-MM-DD key.
func ValidDateKey(s string) bool {
	return dateKeyPattern.MatchString(s)
}

// DayKey returns the local-calendar day key for t.
func DayKey(t time.Time) string {
	return t.Local().Format(dayKeyLayout)
}

func parseDayKey(key string) (time.Time, bool) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// middayOf pins a day key to 12:00 local. Day arithmetic runs on midday
// anchors so a DST transition cannot shift a result across midnight.
func middayOf(key string) (time.Time, bool) {
	t, ok := parseDayKey(key)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local), true
}

// AddDays shifts a day key by delta calendar days. A malformed key is
// returned unchanged.
func AddDays(key string, delta int) string {
	mid, ok := middayOf(key)
	if !ok {
		return key
	}
	return DayKey(mid.AddDate(0, 0, delta))
}

// DiffDays returns b minus a in whole local-calendar days. Malformed keys
// yield 0.
func DiffDays(a, b string) int {
	am, aok := middayOf(a)
	bm, bok := middayOf(b)
	if !aok || !bok {
		return 0
	}
	return int(math.Round(bm.Sub(am).Hours() / 24))
}

// SlotTime is a fixed local time of day.
type SlotTime struct {
	Hour   int
	Minute int
}

// SlotTimes maps each slot to its due time of day.
type SlotTimes map[model.Slot]SlotTime

// DefaultSlotTimes mirrors the adapter defaults.
func DefaultSlotTimes() SlotTimes {
	return SlotTimes{
		model.SlotMorning: {Hour: 8, Minute: 0},
		model.SlotNoon:    {Hour: 12, Minute: 30},
		model.SlotEvening: {Hour: 18, Minute: 30},
		model.SlotNight:   {Hour: 22, Minute: 30},
	}
}

// ParseSlotTimes builds SlotTimes from "HH:MM" config strings, falling back
// to the default for any slot that is absent or malformed.
func ParseSlotTimes(raw map[string]string) SlotTimes {
	times := DefaultSlotTimes()
	for slot, v := range raw {
		s := model.Slot(slot)
		if !s.Valid() {
			continue
		}
		var h, m int
		if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
			continue
		}
		if h < 0 || h > 23 || m < 0 || m > 59 {
			continue
		}
		times[s] = SlotTime{Hour: h, Minute: m}
	}
	return times
}

// DueTime returns the local due timestamp of slot on the given day, or
// ok=false for a malformed key or unknown slot.
func (st SlotTimes) DueTime(dateKey string, slot model.Slot) (time.Time, bool) {
	t, hasSlot := st[slot]
	if !hasSlot {
		return time.Time{}, false
	}
	day, ok := parseDayKey(dateKey)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, time.Local), true
}
