package state

import (
	"sync"
	"time"

	"github.com/AdakHaddad/capdash/internal/decoder"
	"github.com/AdakHaddad/capdash/internal/model"
)

// Snapshot is the full dashboard state at one instant.
type Snapshot struct {
	Sensors       model.SensorReading `json:"sensors"`
	Pumps         model.PumpState     `json:"pumps"`
	Valves        model.ValveState    `json:"valves"`
	Mode          string              `json:"mode,omitempty"`
	StatusMessage string              `json:"status_message,omitempty"`
	Source        model.SourceTag     `json:"source"`
	LastUpdate    time.Time           `json:"last_update,omitempty"`
}

// Store holds the in-memory dashboard state. All telemetry flows through
// Apply on a single goroutine; the mutex only protects HTTP readers and the
// optimistic command path.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Apply merges a decode result into the current state, field by field:
// present fields overwrite, absent fields keep their previous value, series
// are replaced wholesale. Ignored and Unrecognized results change nothing.
func (st *Store) Apply(res decoder.Result) {
	if res.Kind != decoder.KindDecoded {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if p := res.Sensors; p != nil {
		r := &st.snap.Sensors
		setF(&r.Pressure, p.Pressure)
		setF(&r.AirTemperature, p.AirTemperature)
		setF(&r.AirHumidity, p.AirHumidity)
		setF(&r.SoilTemperature, p.SoilTemperature)
		setF(&r.SoilHumidity, p.SoilHumidity)
		setF(&r.WaterLevel, p.WaterLevel)
		if p.SoilTempProbes != nil {
			r.SoilTempProbes = p.SoilTempProbes
		}
		if p.SoilMoistProbes != nil {
			r.SoilMoistProbes = p.SoilMoistProbes
		}
		if p.WaterProbes != nil {
			r.WaterProbes = p.WaterProbes
		}
	}
	if p := res.Pumps; p != nil {
		setB(&st.snap.Pumps.Irrigation, p.Irrigation)
		setB(&st.snap.Pumps.Suction, p.Suction)
	}
	if p := res.Valves; p != nil {
		setB(&st.snap.Valves.Valve1, p.Valve1)
		setB(&st.snap.Valves.Valve2, p.Valve2)
		setB(&st.snap.Valves.Valve3, p.Valve3)
	}
	if res.Mode != nil {
		st.snap.Mode = *res.Mode
	}
	if res.Status != nil {
		st.snap.StatusMessage = *res.Status
	}

	// The tag only moves sideways or up. A status heartbeat or test ping
	// must not visually downgrade a dashboard already fed by rich telemetry.
	if res.Source.Priority() >= st.snap.Source.Priority() {
		st.snap.Source = res.Source
	}
	// Tag-only results (test pings) leave the timestamp alone: nothing new
	// arrived, so the snapshot loop must not see a change.
	if res.Sensors != nil || res.Pumps != nil || res.Valves != nil || res.Mode != nil || res.Status != nil {
		st.snap.LastUpdate = st.now()
	}
}

// SetPumps applies an optimistic, command-issued pump update. It is
// provisional: the next authoritative telemetry decode overwrites it.
func (st *Store) SetPumps(p model.PumpPatch) {
	st.mu.Lock()
	defer st.mu.Unlock()
	setB(&st.snap.Pumps.Irrigation, p.Irrigation)
	setB(&st.snap.Pumps.Suction, p.Suction)
}

// Snapshot returns a copy of the current state.
func (st *Store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snap
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setB(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
