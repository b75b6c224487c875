package model

// SensorReading is the dashboard's current view of the device sensors.
// Percentages are already 0..100 on the wire, temperatures are Celsius.
// WaterLevel keeps the unit of whichever format produced it (cm or %),
// as the device firmware never converged on one.
type SensorReading struct {
	Pressure        float64 `json:"pressure"`
	AirTemperature  float64 `json:"air_temperature"`
	AirHumidity     float64 `json:"air_humidity"`
	SoilTemperature float64 `json:"soil_temperature"`
	SoilHumidity    float64 `json:"soil_humidity"`
	WaterLevel      float64 `json:"water_level"`

	// Per-probe series, replaced wholesale by formats that carry them.
	SoilTempProbes  []float64 `json:"soil_temp_probes,omitempty"`
	SoilMoistProbes []float64 `json:"soil_moisture_probes,omitempty"`
	WaterProbes     []float64 `json:"water_probes,omitempty"`
}

// PumpState tracks the two pumps on the device.
type PumpState struct {
	Irrigation bool `json:"irrigation"`
	Suction    bool `json:"suction"`
}

// ValveState tracks the three solenoid valves. Telemetry-driven only;
// operator commands never set these directly.
type ValveState struct {
	Valve1 bool `json:"valve1"`
	Valve2 bool `json:"valve2"`
	Valve3 bool `json:"valve3"`
}

// ReadingPatch is a partial SensorReading: nil pointers mean "keep the
// previous value". Non-nil slices replace the whole series.
type ReadingPatch struct {
	Pressure        *float64
	AirTemperature  *float64
	AirHumidity     *float64
	SoilTemperature *float64
	SoilHumidity    *float64
	WaterLevel      *float64

	SoilTempProbes  []float64
	SoilMoistProbes []float64
	WaterProbes     []float64
}

// Empty reports whether the patch carries no field at all.
func (p *ReadingPatch) Empty() bool {
	return p == nil || (p.Pressure == nil && p.AirTemperature == nil && p.AirHumidity == nil &&
		p.SoilTemperature == nil && p.SoilHumidity == nil && p.WaterLevel == nil &&
		p.SoilTempProbes == nil && p.SoilMoistProbes == nil && p.WaterProbes == nil)
}

// PumpPatch is a partial PumpState.
type PumpPatch struct {
	Irrigation *bool
	Suction    *bool
}

// ValvePatch is a partial ValveState.
type ValvePatch struct {
	Valve1 *bool
	Valve2 *bool
	Valve3 *bool
}

func F(v float64) *float64 { return &v }
func B(v bool) *bool       { return &v }
