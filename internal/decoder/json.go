package decoder

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/AdakHaddad/capdash/internal/model"
)

// JSON telemetry shipped in three incompatible shapes over the firmware's
// life. They are told apart by key presence, in fixed order: the nested
// STM32 shape (a "bme" block plus probe arrays), then the flat camelCase
// legacy shape, then the sparse snake_case shape.

// soilTempFault marks a disconnected DS18B20 probe. The firmware reports
// -127.00; anything at or below -100 is treated as the same fault class.
const soilTempFault = -100.0

func matchJSON(s string) bool { return strings.HasPrefix(s, "{") }

func extractJSON(s string) (Result, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Result{}, err
	}
	switch {
	case hasKey(m, "bme"):
		return extractNested(m)
	case hasAnyKey(m, "airTemp", "soilTemp", "soilHumidity", "airHumidity", "waterLevel"):
		return extractFlatLegacy(m)
	case hasAnyKey(m, "temperature", "humidity", "soil_temp", "soil_moisture", "water_level", "pressure"):
		return extractSimple(m)
	}
	return Result{}, errors.New("json: no known shape")
}

// extractNested handles the current firmware shape:
//
//	{"ts":175938,"mode":"AUTO","bme":{"t":25.02,"p":997,"h":57.2},
//	 "ds18b20":[-127.00,0.00,0.00],"soil":[100,100,100],
//	 "water":[0.1,1.8],"valve":[0,0,0],"pump":[0,0]}
func extractNested(m map[string]any) (Result, error) {
	out := decoded(model.SourceNestedJSON)
	sensors := &model.ReadingPatch{}

	var airTemp *float64
	if bme, ok := m["bme"].(map[string]any); ok {
		if v, ok := numField(bme, "t"); ok {
			airTemp = model.F(v)
			sensors.AirTemperature = model.F(v)
		}
		if v, ok := numField(bme, "p"); ok {
			sensors.Pressure = model.F(v)
		}
		if v, ok := numField(bme, "h"); ok {
			sensors.AirHumidity = model.F(v)
		}
	}

	if probes, ok := numSlice(m["ds18b20"]); ok {
		sensors.SoilTempProbes = probes
		valid := probes[:0:0]
		for _, v := range probes {
			if v > soilTempFault {
				valid = append(valid, v)
			}
		}
		if avg, ok := mean(valid); ok {
			sensors.SoilTemperature = model.F(avg)
		} else if airTemp != nil {
			// every probe faulted: show air temperature, not zero
			sensors.SoilTemperature = model.F(*airTemp)
		}
	}
	if probes, ok := numSlice(m["soil"]); ok {
		sensors.SoilMoistProbes = probes
		if avg, ok := mean(probes); ok {
			sensors.SoilHumidity = model.F(avg)
		}
	}
	if probes, ok := numSlice(m["water"]); ok {
		sensors.WaterProbes = probes
		if avg, ok := mean(probes); ok {
			sensors.WaterLevel = model.F(avg)
		}
	}
	if !sensors.Empty() {
		out.Sensors = sensors
	}

	if vals, ok := numSlice(m["valve"]); ok {
		vp := &model.ValvePatch{}
		if len(vals) > 0 {
			vp.Valve1 = model.B(vals[0] == 1)
		}
		if len(vals) > 1 {
			vp.Valve2 = model.B(vals[1] == 1)
		}
		if len(vals) > 2 {
			vp.Valve3 = model.B(vals[2] == 1)
		}
		out.Valves = vp
	}
	if vals, ok := numSlice(m["pump"]); ok {
		pp := &model.PumpPatch{}
		if len(vals) > 0 {
			pp.Irrigation = model.B(vals[0] == 1)
		}
		if len(vals) > 1 {
			pp.Suction = model.B(vals[1] == 1)
		}
		out.Pumps = pp
	}
	if mode, ok := m["mode"].(string); ok && mode != "" {
		out.Mode = &mode
	}
	return out, nil
}

// extractFlatLegacy handles the hosted-broker era shape with one camelCase
// scalar per channel: {"pressure":..,"soilTemp":..,"soilHumidity":..,
// "waterLevel":..,"airTemp":..,"airHumidity":..,"timestamp":"42"}.
func extractFlatLegacy(m map[string]any) (Result, error) {
	out := decoded(model.SourceLegacyJSON)
	sensors := &model.ReadingPatch{}
	if v, ok := numField(m, "pressure"); ok {
		sensors.Pressure = model.F(v)
	}
	if v, ok := numField(m, "soilTemp"); ok {
		sensors.SoilTemperature = model.F(v)
	}
	if v, ok := numField(m, "soilHumidity"); ok {
		sensors.SoilHumidity = model.F(v)
	}
	if v, ok := numField(m, "waterLevel"); ok {
		sensors.WaterLevel = model.F(v)
	}
	if v, ok := numField(m, "airTemp"); ok {
		sensors.AirTemperature = model.F(v)
	}
	if v, ok := numField(m, "airHumidity"); ok {
		sensors.AirHumidity = model.F(v)
	}
	out.Sensors = sensors
	return out, nil
}

// extractSimple handles the sparse snake_case shape. Every field is
// optional and independently defaults to the previous value when absent.
func extractSimple(m map[string]any) (Result, error) {
	out := decoded(model.SourceSimpleJSON)
	sensors := &model.ReadingPatch{}
	if v, ok := numField(m, "temperature"); ok {
		sensors.AirTemperature = model.F(v)
	}
	if v, ok := numField(m, "humidity"); ok {
		sensors.AirHumidity = model.F(v)
	}
	if v, ok := numField(m, "soil_temp"); ok {
		sensors.SoilTemperature = model.F(v)
	}
	if v, ok := numField(m, "soil_moisture"); ok {
		sensors.SoilHumidity = model.F(v)
	}
	if v, ok := numField(m, "water_level"); ok {
		sensors.WaterLevel = model.F(v)
	}
	if v, ok := numField(m, "pressure"); ok {
		sensors.Pressure = model.F(v)
	}
	if sensors.Empty() {
		return Result{}, errors.New("json: simple shape with no usable field")
	}
	out.Sensors = sensors
	return out, nil
}

func hasKey(m map[string]any, k string) bool { _, ok := m[k]; return ok }

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// numField reads m[k] as a number, tolerating strings like "42". A field
// that fails to parse is simply absent; it never aborts the decode.
func numField(m map[string]any, k string) (float64, bool) {
	v, ok := m[k]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// numSlice converts a JSON array value to floats; non-numeric entries make
// the whole series unusable (a garbled array must not skew a mean).
func numSlice(v any) ([]float64, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, e := range arr {
		f, ok := toFloat(e)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
