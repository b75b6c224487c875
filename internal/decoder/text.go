package decoder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AdakHaddad/capdash/internal/model"
)

// Text formats, oldest firmware first by priority after JSON. Several of
// these share delimiter characters, so the matcher order in decoder.go is
// load-bearing: it is the tie-break for ambiguous payloads.

// compact key=value: st=25,at=27,sh=70,ah=65,p=825,wl=18,c=1
// All six sensor fields must be present as integers; c= is a message
// counter and informational only.
var compactRe = regexp.MustCompile(`^st=(-?\d+),at=(-?\d+),sh=(\d+),ah=(\d+),p=(\d+),wl=(\d+)(?:,c=(\d+))?$`)

func matchCompactKV(s string) bool { return compactRe.MatchString(s) }

func extractCompactKV(s string) (Result, error) {
	g := compactRe.FindStringSubmatch(s)
	if g == nil {
		return Result{}, fmt.Errorf("compact: no match")
	}
	fs := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(g[i+1], 64)
		if err != nil {
			return Result{}, fmt.Errorf("compact: field %d: %w", i+1, err)
		}
		fs[i] = v
	}
	out := decoded(model.SourceCompactKV)
	out.Sensors = &model.ReadingPatch{
		SoilTemperature: model.F(fs[0]),
		AirTemperature:  model.F(fs[1]),
		SoilHumidity:    model.F(fs[2]),
		AirHumidity:     model.F(fs[3]),
		Pressure:        model.F(fs[4]),
		WaterLevel:      model.F(fs[5]),
	}
	return out, nil
}

// pipe summary: ENV:25.0,60.2,1001|SOIL:24.1,23.9,24.3|WATER:12,14|PUMP:1,0
// Sections are positional with fixed arity (ENV 3, SOIL 3, WATER 2, PUMP 2)
// and this format has no fault-code convention, so no filtering happens.
func matchSummary(s string) bool {
	return strings.Contains(s, "ENV:") && strings.Contains(s, "SOIL:") &&
		strings.Contains(s, "WATER:") && strings.Contains(s, "PUMP:")
}

func extractSummary(s string) (Result, error) {
	sections := map[string][]float64{}
	for _, part := range strings.Split(s, "|") {
		name, rest, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return Result{}, fmt.Errorf("summary: section %q has no marker", part)
		}
		var vals []float64
		for _, f := range strings.Split(rest, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return Result{}, fmt.Errorf("summary: %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		sections[name] = vals
	}
	env, soil, water, pump := sections["ENV"], sections["SOIL"], sections["WATER"], sections["PUMP"]
	if len(env) != 3 || len(soil) != 3 || len(water) != 2 || len(pump) != 2 {
		return Result{}, fmt.Errorf("summary: bad arity env=%d soil=%d water=%d pump=%d",
			len(env), len(soil), len(water), len(pump))
	}

	soilAvg, _ := mean(soil)
	waterAvg, _ := mean(water)
	out := decoded(model.SourceSummary)
	out.Sensors = &model.ReadingPatch{
		AirTemperature:  model.F(env[0]),
		AirHumidity:     model.F(env[1]),
		Pressure:        model.F(env[2]),
		SoilTemperature: model.F(soilAvg),
		WaterLevel:      model.F(waterAvg),
		SoilTempProbes:  soil,
		WaterProbes:     water,
	}
	out.Pumps = &model.PumpPatch{
		Irrigation: model.B(pump[0] == 1),
		Suction:    model.B(pump[1] == 1),
	}
	return out, nil
}

// prefixed positional: STM32_p1001_s24_h55_w18_t26_a60_c42
// Letter codes: p pressure, s soil temp, h soil humidity, w water level,
// t air temp, a air humidity, c counter. Every field is optional.
var codedRe = regexp.MustCompile(`^STM32(?:_[pshwtac]-?\d+)+$`)

func matchCoded(s string) bool { return codedRe.MatchString(s) }

func extractCoded(s string) (Result, error) {
	out := decoded(model.SourceCoded)
	sensors := &model.ReadingPatch{}
	for _, field := range strings.Split(s, "_")[1:] {
		v, err := strconv.ParseFloat(field[1:], 64)
		if err != nil {
			return Result{}, fmt.Errorf("coded: %q: %w", field, err)
		}
		switch field[0] {
		case 'p':
			sensors.Pressure = model.F(v)
		case 's':
			sensors.SoilTemperature = model.F(v)
		case 'h':
			sensors.SoilHumidity = model.F(v)
		case 'w':
			sensors.WaterLevel = model.F(v)
		case 't':
			sensors.AirTemperature = model.F(v)
		case 'a':
			sensors.AirHumidity = model.F(v)
		case 'c':
			// message counter, informational only
		}
	}
	if sensors.Empty() {
		return Result{}, fmt.Errorf("coded: counter only")
	}
	out.Sensors = sensors
	return out, nil
}

// ultra-short positional: P997T25H57S24M70W18 — one letter per field, no
// separators. The whole payload must conform; partial matches are rejected
// so an unrelated numeric string is never misread as telemetry.
var shortcodeRe = regexp.MustCompile(`^P(\d+)T(-?\d+)H(\d+)S(-?\d+)M(\d+)W(\d+)$`)

func matchShortcode(s string) bool { return shortcodeRe.MatchString(s) }

func extractShortcode(s string) (Result, error) {
	g := shortcodeRe.FindStringSubmatch(s)
	if g == nil {
		return Result{}, fmt.Errorf("shortcode: no match")
	}
	fs := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(g[i+1], 64)
		if err != nil {
			return Result{}, fmt.Errorf("shortcode: field %d: %w", i+1, err)
		}
		fs[i] = v
	}
	out := decoded(model.SourceShortcode)
	out.Sensors = &model.ReadingPatch{
		Pressure:        model.F(fs[0]),
		AirTemperature:  model.F(fs[1]),
		AirHumidity:     model.F(fs[2]),
		SoilTemperature: model.F(fs[3]),
		SoilHumidity:    model.F(fs[4]),
		WaterLevel:      model.F(fs[5]),
	}
	return out, nil
}

// status key=value: status=ONLINE,uptime=12345
// Produces a status message only; sensor state and the source tag of richer
// formats are left alone (the reducer's priority rule enforces the latter).
var statusRe = regexp.MustCompile(`^status=([A-Za-z0-9_-]+),uptime=(\d+)$`)

func matchStatusKV(s string) bool { return statusRe.MatchString(s) }

func extractStatusKV(s string) (Result, error) {
	g := statusRe.FindStringSubmatch(s)
	if g == nil {
		return Result{}, fmt.Errorf("status: no match")
	}
	uptime, err := strconv.ParseInt(g[2], 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("status: uptime: %w", err)
	}
	out := decoded(model.SourceStatus)
	msg := fmt.Sprintf("%s, up %ds", g[1], uptime)
	out.Status = &msg
	return out, nil
}
