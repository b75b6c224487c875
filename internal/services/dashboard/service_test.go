package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/AdakHaddad/capdash/internal/decoder"
	"github.com/AdakHaddad/capdash/internal/dispatch"
	"github.com/AdakHaddad/capdash/internal/state"
	"github.com/AdakHaddad/capdash/internal/store"
)

type fakePublisher struct {
	connected bool
	topic     string
	payload   string
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload string) error {
	f.topic, f.payload = topic, payload
	return nil
}

func newTestService(t *testing.T, pub *fakePublisher) (*Service, *state.Store) {
	t.Helper()
	records, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	st := state.NewStore()
	disp := dispatch.New(pub, nil, records, st, "d02/cmd", 1)
	cfg := Config{
		Topics: decoder.Topics{
			Telemetry: "d02/telemetry",
			Data:      "d02/data",
			Status:    "d02/status",
			Test:      "d02/test",
		},
		CommandTopic: "d02/cmd",
		CommandQoS:   1,
	}
	return NewService(cfg, nil, st, records, nil, disp, nil), st
}

func TestHandleTelemetryUpdatesState(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{})

	svc.handle("d02/telemetry",
		`{"ts":1,"mode":"AUTO","bme":{"t":25.02,"p":997,"h":57.2},`+
			`"ds18b20":[-127,0,0],"soil":[100,100,100],"water":[0.1,1.8],"pump":[0,0]}`)

	snap := svc.State()
	is.Equal(snap.Sensors.AirTemperature, 25.02)
	is.Equal(snap.Sensors.SoilHumidity, 100.0)
	is.Equal(snap.Mode, "AUTO")
	is.Equal(string(snap.Source), "stm32-json")
}

func TestHandleGarbageLeavesStateAlone(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{})

	svc.handle("d02/telemetry", `{"bme":{"t":25}}`)
	before := svc.State()

	svc.handle("d02/telemetry", "complete garbage")
	after := svc.State()
	is.Equal(after.Sensors.AirTemperature, before.Sensors.AirTemperature)
	is.Equal(after.LastUpdate, before.LastUpdate)
}

func TestDashboardDataEndpoint(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{})
	svc.handle("d02/data", "st=25,at=27,sh=70,ah=65,p=825,wl=18,c=1")

	rec := httptest.NewRecorder()
	svc.NewHTTPMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/data", nil))
	is.Equal(rec.Code, http.StatusOK)

	var resp struct {
		Sensors struct {
			AirTemperature float64 `json:"air_temperature"`
			SoilHumidity   float64 `json:"soil_humidity"`
		} `json:"sensors"`
		Source  string `json:"source"`
		Mascot  string `json:"mascot"`
		StoreOK bool   `json:"store_ok"`
	}
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &resp))
	is.Equal(resp.Sensors.AirTemperature, 27.0)
	is.Equal(resp.Sensors.SoilHumidity, 70.0)
	is.Equal(resp.Source, "compact-kv")
	is.Equal(resp.Mascot, "happy")
	is.Equal(resp.StoreOK, true)
}

func TestCommandEndpoint(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{connected: true}
	svc, st := newTestService(t, pub)
	mux := svc.NewHTTPMux()

	body := bytes.NewBufferString(`{"command":"start-irrigation","duration_sec":300}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", body))

	is.Equal(rec.Code, http.StatusOK)
	is.Equal(pub.topic, "d02/cmd")
	is.Equal(pub.payload, "POMPA")
	is.Equal(st.Snapshot().Pumps.Irrigation, true)

	// the dispatch left an audit row behind
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/commands/recent", nil))
	is.Equal(rec.Code, http.StatusOK)
	var recs []struct {
		Command string `json:"command"`
	}
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &recs))
	is.Equal(len(recs), 1)
	is.Equal(recs[0].Command, "start-irrigation")
}

func TestCommandEndpointRejectsUnknown(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{connected: true})

	rec := httptest.NewRecorder()
	svc.NewHTTPMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands",
		bytes.NewBufferString(`{"command":"reformat-disk"}`)))
	is.Equal(rec.Code, http.StatusBadRequest)
}

func TestScheduleEndpoints(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{})
	mux := svc.NewHTTPMux()

	// reject before store
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/schedules",
		bytes.NewBufferString(`{"name":"bad","type":"recurring","time_of_day":"26:00","duration_min":10}`)))
	is.Equal(rec.Code, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/schedules",
		bytes.NewBufferString(`{"name":"morning","type":"recurring","time_of_day":"06:00","duration_min":15,"enabled":true}`)))
	is.Equal(rec.Code, http.StatusCreated)
	var created struct {
		ID int64 `json:"id"`
	}
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &created))
	is.True(created.ID > 0)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schedules", nil))
	is.Equal(rec.Code, http.StatusOK)
	var list []json.RawMessage
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &list))
	is.Equal(len(list), 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/schedules/1", nil))
	is.Equal(rec.Code, http.StatusOK)
}

func TestStoreUnavailableDegradesCleanly(t *testing.T) {
	is := is.New(t)
	st := state.NewStore()
	disp := dispatch.New(&fakePublisher{connected: true}, nil, nil, st, "d02/cmd", 1)
	svc := NewService(Config{Topics: decoder.Topics{Telemetry: "d02/telemetry"}}, nil, st, nil, nil, disp, nil)
	mux := svc.NewHTTPMux()

	for _, path := range []string{"/commands/recent", "/schedules", "/history/recent", "/schedules/next"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		is.Equal(rec.Code, http.StatusServiceUnavailable) // path: degraded, not crashed
	}

	// commands still dispatch without the audit store
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands",
		bytes.NewBufferString(`{"command":"stop-all"}`)))
	is.Equal(rec.Code, http.StatusOK)
}

func TestPersistSnapshotSkipsWhenUnchanged(t *testing.T) {
	is := is.New(t)
	svc, _ := newTestService(t, &fakePublisher{})
	ctx := context.Background()

	svc.handle("d02/data", "st=25,at=27,sh=70,ah=65,p=825,wl=18,c=9")
	last := svc.persistSnapshot(ctx, svc.persistSnapshot(ctx, time.Time{}))

	rows, err := svc.records.RecentHistory(ctx, 10)
	is.NoErr(err)
	is.Equal(len(rows), 1) // second pass wrote nothing new
	is.Equal(last, svc.State().LastUpdate)
}
