// Package schedule computes upcoming watering windows from stored schedule
// definitions and fires the irrigation command when a window opens.
package schedule

import (
	"time"

	"github.com/AdakHaddad/capdash/internal/model"
)

// Window is a resolved watering window instance.
type Window struct {
	Entry model.ScheduleEntry `json:"entry"`
	Start time.Time           `json:"start"`
	End   time.Time           `json:"end"`
}

// NextWindow returns the earliest window starting at or after now across
// all enabled entries. Recurring entries resolve to today or tomorrow;
// one-time entries resolve on their own date, however far out that is.
func NextWindow(entries []model.ScheduleEntry, now time.Time, loc *time.Location) (Window, bool) {
	var best Window
	found := false
	today := now.In(loc)

	for _, e := range entries {
		if !e.Enabled || e.DurationMin <= 0 {
			continue
		}
		days := []time.Time{today, today.AddDate(0, 0, 1)}
		if e.Type == model.ScheduleOneTime {
			d, err := time.ParseInLocation("2006-01-02", e.Date, loc)
			if err != nil {
				continue
			}
			days = []time.Time{d}
		}
		for _, day := range days {
			start, ok := e.StartOn(day, loc)
			if !ok || start.Before(now) {
				continue
			}
			if !found || start.Before(best.Start) {
				best = Window{Entry: e, Start: start, End: start.Add(time.Duration(e.DurationMin) * time.Minute)}
				found = true
			}
			break // earliest instance of this entry is enough
		}
	}
	return best, found
}

// DueNow returns the window that should be running at now, if any. Used by
// the trigger loop to decide whether to fire.
func DueNow(entries []model.ScheduleEntry, now time.Time, loc *time.Location) (Window, bool) {
	for _, e := range entries {
		if !e.Enabled || e.DurationMin <= 0 {
			continue
		}
		start, ok := e.StartOn(now.In(loc), loc)
		if !ok {
			continue
		}
		end := start.Add(time.Duration(e.DurationMin) * time.Minute)
		if !now.Before(start) && now.Before(end) {
			return Window{Entry: e, Start: start, End: end}, true
		}
	}
	return Window{}, false
}

// GatesPass checks the entry's optional gating conditions against current
// sensor values. A nil threshold is not checked.
func GatesPass(e model.ScheduleEntry, r model.SensorReading) bool {
	if e.MoistBelow != nil && r.SoilHumidity >= *e.MoistBelow {
		return false
	}
	if e.TempAbove != nil && r.AirTemperature <= *e.TempAbove {
		return false
	}
	return true
}
