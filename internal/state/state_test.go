package state

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/AdakHaddad/capdash/internal/decoder"
	"github.com/AdakHaddad/capdash/internal/model"
)

func decodedResult(tag model.SourceTag) decoder.Result {
	return decoder.Result{Kind: decoder.KindDecoded, Source: tag}
}

func TestApplyPartialMerge(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	full := decodedResult(model.SourceLegacyJSON)
	full.Sensors = &model.ReadingPatch{
		Pressure:       model.F(997),
		AirTemperature: model.F(25),
		SoilHumidity:   model.F(70),
		WaterLevel:     model.F(18),
	}
	st.Apply(full)

	// a sparse follow-up touches one field; everything else survives
	partial := decodedResult(model.SourceSimpleJSON)
	partial.Sensors = &model.ReadingPatch{AirTemperature: model.F(26.5)}
	st.Apply(partial)

	snap := st.Snapshot()
	is.Equal(snap.Sensors.AirTemperature, 26.5)
	is.Equal(snap.Sensors.Pressure, 997.0)
	is.Equal(snap.Sensors.SoilHumidity, 70.0)
	is.Equal(snap.Sensors.WaterLevel, 18.0)
}

func TestApplySourceTagNeverDowngrades(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	rich := decodedResult(model.SourceNestedJSON)
	rich.Sensors = &model.ReadingPatch{AirTemperature: model.F(25)}
	st.Apply(rich)

	hb := decodedResult(model.SourceStatus)
	msg := "ONLINE, up 10s"
	hb.Status = &msg
	st.Apply(hb)

	snap := st.Snapshot()
	is.Equal(snap.Source, model.SourceNestedJSON) // heartbeat must not replace the rich tag
	is.Equal(snap.StatusMessage, "ONLINE, up 10s")
}

func TestApplyTestTagOnlyWhenNothingElse(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	st.Apply(decodedResult(model.SourceTest))
	is.Equal(st.Snapshot().Source, model.SourceTest)
	is.True(st.Snapshot().LastUpdate.IsZero()) // tag-only ping carries no data

	rich := decodedResult(model.SourceCompactKV)
	rich.Sensors = &model.ReadingPatch{AirTemperature: model.F(27)}
	st.Apply(rich)
	is.Equal(st.Snapshot().Source, model.SourceCompactKV)

	// once real telemetry arrived, a later ping leaves the tag alone
	st.Apply(decodedResult(model.SourceTest))
	is.Equal(st.Snapshot().Source, model.SourceCompactKV)
}

func TestApplyIgnoredAndUnrecognizedAreNoops(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	rich := decodedResult(model.SourceNestedJSON)
	rich.Sensors = &model.ReadingPatch{AirTemperature: model.F(25)}
	st.Apply(rich)
	before := st.Snapshot()

	st.Apply(decoder.Result{Kind: decoder.KindIgnored})
	st.Apply(decoder.Result{Kind: decoder.KindUnrecognized, Raw: "garbage"})

	after := st.Snapshot()
	is.Equal(after.Sensors.AirTemperature, before.Sensors.AirTemperature)
	is.Equal(after.Source, before.Source)
	is.Equal(after.LastUpdate, before.LastUpdate)
}

func TestApplySeriesReplacedWholesale(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	a := decodedResult(model.SourceNestedJSON)
	a.Sensors = &model.ReadingPatch{SoilTempProbes: []float64{-127, 22, 23}}
	st.Apply(a)

	b := decodedResult(model.SourceNestedJSON)
	b.Sensors = &model.ReadingPatch{SoilTempProbes: []float64{21, 22, 23}}
	st.Apply(b)

	is.Equal(st.Snapshot().Sensors.SoilTempProbes, []float64{21, 22, 23})
}

func TestSetPumpsOptimisticThenOverwritten(t *testing.T) {
	is := is.New(t)
	st := NewStore()

	st.SetPumps(model.PumpPatch{Irrigation: model.B(true)})
	is.Equal(st.Snapshot().Pumps.Irrigation, true)

	// authoritative telemetry wins over the provisional command state
	res := decodedResult(model.SourceNestedJSON)
	res.Pumps = &model.PumpPatch{Irrigation: model.B(false), Suction: model.B(false)}
	st.Apply(res)
	is.Equal(st.Snapshot().Pumps.Irrigation, false)
}

func TestApplyStampsLastUpdate(t *testing.T) {
	is := is.New(t)
	st := NewStore()
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return fixed }

	res := decodedResult(model.SourceCompactKV)
	res.Sensors = &model.ReadingPatch{AirTemperature: model.F(27)}
	st.Apply(res)

	is.Equal(st.Snapshot().LastUpdate, fixed)
}
