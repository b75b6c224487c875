package model

import "time"

// Schedule types: a daily recurring window or a one-time dated window.
const (
	ScheduleRecurring = "recurring"
	ScheduleOneTime   = "one-time"
)

// ScheduleEntry is a stored watering window definition. Gating thresholds
// are optional: nil means the condition is not checked.
type ScheduleEntry struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"` // recurring | one-time
	Date        string   `json:"date,omitempty"` // YYYY-MM-DD, one-time only
	TimeOfDay   string   `json:"time_of_day"`    // HH:MM, local
	DurationMin int      `json:"duration_min"`
	MoistBelow  *float64 `json:"soil_moisture_below,omitempty"`
	TempAbove   *float64 `json:"temperature_above,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// StartOn resolves the entry's start instant on the given day, or false if
// the time-of-day does not parse or the entry is dated for another day.
func (e ScheduleEntry) StartOn(day time.Time, loc *time.Location) (time.Time, bool) {
	tod, err := time.ParseInLocation("15:04", e.TimeOfDay, loc)
	if err != nil {
		return time.Time{}, false
	}
	if e.Type == ScheduleOneTime {
		d, err := time.ParseInLocation("2006-01-02", e.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		if d.Year() != day.Year() || d.YearDay() != day.YearDay() {
			return time.Time{}, false
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), true
}
