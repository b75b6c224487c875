// Package history streams dashboard snapshots to InfluxDB as time-series
// points. Failures are tracked for health reporting, never propagated.
package history

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AdakHaddad/capdash/internal/state"
)

// Writer wraps the async WriteAPI and tracks the last write error for
// /healthz and /readyz.
type Writer struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
}

func NewWriter(w api.WriteAPI) *Writer {
	ww := &Writer{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				log.Printf("history: influx write error: %v", err)
			}
		}
	}()
	return ww
}

// WriteSnapshot queues one dashboard snapshot as a point. Non-blocking.
func (w *Writer) WriteSnapshot(snap state.Snapshot) {
	if w == nil {
		return
	}
	w.api.WritePoint(snapshotToPoint(snap))
}

// LastErrorAge returns how long the writer has gone without a write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// snapshotToPoint normalizes a snapshot into a single "sensor_reading"
// measurement tagged with the data source.
func snapshotToPoint(snap state.Snapshot) *write.Point {
	tags := map[string]string{
		"source": string(snap.Source),
	}
	if snap.Mode != "" {
		tags["mode"] = snap.Mode
	}
	fields := map[string]interface{}{
		"pressure":        snap.Sensors.Pressure,
		"air_temp":        snap.Sensors.AirTemperature,
		"air_humidity":    snap.Sensors.AirHumidity,
		"soil_temp":       snap.Sensors.SoilTemperature,
		"soil_humidity":   snap.Sensors.SoilHumidity,
		"water_level":     snap.Sensors.WaterLevel,
		"pump_irrigation": snap.Pumps.Irrigation,
		"pump_suction":    snap.Pumps.Suction,
	}
	ts := snap.LastUpdate
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint("sensor_reading", tags, fields, ts)
}
