// Package store is the relational record store: command audit rows, sensor
// history snapshots and schedule definitions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AdakHaddad/capdash/internal/model"
)

type RecordStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	command TEXT NOT NULL,
	pump_type TEXT NOT NULL,
	duration_sec INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	issued_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commands_issued ON commands(issued_at);

CREATE TABLE IF NOT EXISTS sensor_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pressure REAL, air_temp REAL, air_humidity REAL,
	soil_temp REAL, soil_humidity REAL, water_level REAL,
	pump_irrigation INTEGER NOT NULL DEFAULT 0,
	pump_suction INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_recorded ON sensor_history(recorded_at);

CREATE TABLE IF NOT EXISTS schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	date TEXT NOT NULL DEFAULT '',
	time_of_day TEXT NOT NULL,
	duration_min INTEGER NOT NULL,
	moisture_below REAL,
	temp_above REAL,
	enabled INTEGER NOT NULL DEFAULT 1
);`

// Open opens (or creates) the SQLite database and initializes the schema.
func Open(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	log.Printf("store: database ready at %s", path)
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Close() error { return s.db.Close() }

// InsertCommand writes one audit row. Callers treat failures as best-effort:
// a pump command still takes effect even if its audit write fails.
func (s *RecordStore) InsertCommand(ctx context.Context, rec model.CommandRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands(command, pump_type, duration_sec, source, issued_at) VALUES(?,?,?,?,?)`,
		rec.Command, rec.PumpType, rec.DurationSec, rec.Source, rec.IssuedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecentCommands returns the latest audit rows, newest first.
func (s *RecordStore) RecentCommands(ctx context.Context, limit int) ([]model.CommandRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, pump_type, duration_sec, source, issued_at
		 FROM commands ORDER BY issued_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	out := make([]model.CommandRecord, 0, limit)
	for rows.Next() {
		var r model.CommandRecord
		if err := rows.Scan(&r.ID, &r.Command, &r.PumpType, &r.DurationSec, &r.Source, &r.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HistoryRow is one persisted sensor snapshot.
type HistoryRow struct {
	ID             int64     `json:"id"`
	Pressure       float64   `json:"pressure"`
	AirTemp        float64   `json:"air_temperature"`
	AirHumidity    float64   `json:"air_humidity"`
	SoilTemp       float64   `json:"soil_temperature"`
	SoilHumidity   float64   `json:"soil_humidity"`
	WaterLevel     float64   `json:"water_level"`
	PumpIrrigation bool      `json:"pump_irrigation"`
	PumpSuction    bool      `json:"pump_suction"`
	Source         string    `json:"source"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// InsertSnapshot persists one dashboard snapshot as a history row.
func (s *RecordStore) InsertSnapshot(ctx context.Context, r model.SensorReading, p model.PumpState, source model.SourceTag, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_history(pressure, air_temp, air_humidity, soil_temp, soil_humidity,
		 water_level, pump_irrigation, pump_suction, source, recorded_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.Pressure, r.AirTemperature, r.AirHumidity, r.SoilTemperature, r.SoilHumidity,
		r.WaterLevel, boolInt(p.Irrigation), boolInt(p.Suction), string(source), at.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// RecentHistory returns persisted snapshots, newest first.
func (s *RecordStore) RecentHistory(ctx context.Context, limit int) ([]HistoryRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pressure, air_temp, air_humidity, soil_temp, soil_humidity, water_level,
		 pump_irrigation, pump_suction, source, recorded_at
		 FROM sensor_history ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var irr, suc int
		if err := rows.Scan(&r.ID, &r.Pressure, &r.AirTemp, &r.AirHumidity, &r.SoilTemp,
			&r.SoilHumidity, &r.WaterLevel, &irr, &suc, &r.Source, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.PumpIrrigation, r.PumpSuction = irr == 1, suc == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertSchedule stores a schedule definition and returns its id.
func (s *RecordStore) InsertSchedule(ctx context.Context, e model.ScheduleEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(name, type, date, time_of_day, duration_min, moisture_below, temp_above, enabled)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.Name, e.Type, e.Date, e.TimeOfDay, e.DurationMin, e.MoistBelow, e.TempAbove, boolInt(e.Enabled))
	if err != nil {
		return 0, fmt.Errorf("insert schedule: %w", err)
	}
	return res.LastInsertId()
}

// DeleteSchedule removes a schedule definition.
func (s *RecordStore) DeleteSchedule(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// ListSchedules returns every stored schedule definition.
func (s *RecordStore) ListSchedules(ctx context.Context) ([]model.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, date, time_of_day, duration_min, moisture_below, temp_above, enabled
		 FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		var enabled int
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Date, &e.TimeOfDay, &e.DurationMin,
			&e.MoistBelow, &e.TempAbove, &enabled); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		e.Enabled = enabled == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
