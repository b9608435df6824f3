package publishing

import "time"

// Window describes the daily hours during which publications may go live.
type Window struct {
	StartHour     int
	EndHour       int
	IntervalHours int
}

// NextSlot returns the first publication slot strictly after the given
// moment. Slots run every IntervalHours on the hour between StartHour and
// EndHour; past the last slot of the day, scheduling rolls to the next day's
// first slot.
func NextSlot(after time.Time, window Window) time.Time {
	interval := window.IntervalHours
	if interval <= 0 {
		interval = 3
	}
	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())
	for hour := window.StartHour; hour <= window.EndHour; hour += interval {
		slot := day.Add(time.Duration(hour) * time.Hour)
		if slot.After(after) {
			return slot
		}
	}
	nextDay := day.AddDate(0, 0, 1)
	return nextDay.Add(time.Duration(window.StartHour) * time.Hour)
}

// SlotSequence returns n consecutive slots starting strictly after the given
// moment, used to spread one content's platforms across the day.
func SlotSequence(after time.Time, window Window, n int) []time.Time {
	slots := make([]time.Time, 0, n)
	cursor := after
	for i := 0; i < n; i++ {
		cursor = NextSlot(cursor, window)
		slots = append(slots, cursor)
	}
	return slots
}
