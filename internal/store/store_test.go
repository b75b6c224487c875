package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/AdakHaddad/capdash/internal/model"
)

func openTemp(t *testing.T) *RecordStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommandAudit(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i, cmd := range []model.Command{model.CmdStartIrrigation, model.CmdStopAll} {
		err := s.InsertCommand(ctx, model.CommandRecord{
			Command:     string(cmd),
			PumpType:    cmd.PumpType(),
			DurationSec: 60 * i,
			Source:      "manual",
			IssuedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		is.NoErr(err)
	}

	recs, err := s.RecentCommands(ctx, 10)
	is.NoErr(err)
	is.Equal(len(recs), 2)
	is.Equal(recs[0].Command, "stop-all") // newest first
	is.Equal(recs[0].PumpType, "both")
	is.Equal(recs[1].Command, "start-irrigation")
	is.Equal(recs[1].DurationSec, 0)
}

func TestSnapshotHistory(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()

	reading := model.SensorReading{
		Pressure: 997, AirTemperature: 25.02, AirHumidity: 57.2,
		SoilTemperature: 24.1, SoilHumidity: 70, WaterLevel: 0.95,
	}
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	err := s.InsertSnapshot(ctx, reading, model.PumpState{Irrigation: true}, model.SourceNestedJSON, at)
	is.NoErr(err)

	rows, err := s.RecentHistory(ctx, 10)
	is.NoErr(err)
	is.Equal(len(rows), 1)
	is.Equal(rows[0].AirTemp, 25.02)
	is.Equal(rows[0].WaterLevel, 0.95)
	is.Equal(rows[0].PumpIrrigation, true)
	is.Equal(rows[0].PumpSuction, false)
	is.Equal(rows[0].Source, "stm32-json")
}

func TestScheduleRoundTrip(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()

	id, err := s.InsertSchedule(ctx, model.ScheduleEntry{
		Name: "morning", Type: model.ScheduleRecurring,
		TimeOfDay: "06:00", DurationMin: 15,
		MoistBelow: model.F(40), Enabled: true,
	})
	is.NoErr(err)
	is.True(id > 0)

	entries, err := s.ListSchedules(ctx)
	is.NoErr(err)
	is.Equal(len(entries), 1)
	is.Equal(entries[0].Name, "morning")
	is.Equal(*entries[0].MoistBelow, 40.0)
	is.True(entries[0].TempAbove == nil)
	is.Equal(entries[0].Enabled, true)

	is.NoErr(s.DeleteSchedule(ctx, id))
	entries, err = s.ListSchedules(ctx)
	is.NoErr(err)
	is.Equal(len(entries), 0)
}
