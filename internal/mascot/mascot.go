// Package mascot derives the dashboard avatar's mood from sensor
// thresholds. Purely decorative: nothing downstream depends on it.
package mascot

import "github.com/AdakHaddad/capdash/internal/model"

// Mood is the avatar animation state.
type Mood string

const (
	MoodHappy         Mood = "happy"
	MoodUncomfortable Mood = "uncomfortable"
	MoodPanting       Mood = "panting"
	MoodWilting       Mood = "wilting"
	MoodShaking       Mood = "shaking"
	MoodWatered       Mood = "watered"
	MoodCold          Mood = "cold"
)

// Derive maps the current reading and pump state to a mood. Checks are
// ordered most-specific first; the first hit wins.
func Derive(r model.SensorReading, p model.PumpState) Mood {
	switch {
	case p.Irrigation || r.SoilHumidity >= 80:
		return MoodWatered
	case r.AirTemperature >= 38 && r.SoilHumidity <= 25:
		return MoodShaking
	case r.AirTemperature >= 36:
		return MoodPanting
	case r.AirTemperature <= 15:
		return MoodCold
	case r.SoilHumidity <= 30:
		return MoodWilting
	case r.AirTemperature >= 31 || r.SoilHumidity <= 50:
		return MoodUncomfortable
	default:
		return MoodHappy
	}
}
