package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/AdakHaddad/capdash/internal/model"
	"github.com/AdakHaddad/capdash/internal/state"
)

type fakePublisher struct {
	connected bool
	failWith  error
	topic     string
	payload   string
	calls     int
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload string) error {
	f.calls++
	if f.failWith != nil {
		return f.failWith
	}
	f.topic, f.payload = topic, payload
	return nil
}

type fakeAuditor struct{ recs []model.CommandRecord }

func (f *fakeAuditor) InsertCommand(_ context.Context, rec model.CommandRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

func TestDispatchViaMQTT(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{connected: true}
	audit := &fakeAuditor{}
	st := state.NewStore()
	d := New(pub, nil, audit, st, "d02/cmd", 1)

	via, err := d.Dispatch(context.Background(), "start-irrigation", 300, "manual")
	is.NoErr(err)
	is.Equal(via, "mqtt")
	is.Equal(pub.topic, "d02/cmd")
	is.Equal(pub.payload, "POMPA")

	is.Equal(len(audit.recs), 1)
	is.Equal(audit.recs[0].Command, "start-irrigation")
	is.Equal(audit.recs[0].PumpType, "irrigation")
	is.Equal(audit.recs[0].DurationSec, 300)

	// optimistic state applied before confirmation
	is.Equal(st.Snapshot().Pumps.Irrigation, true)
}

func TestDispatchStopAllForcesBothPumpsOff(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{connected: true}
	st := state.NewStore()
	st.SetPumps(model.PumpPatch{Irrigation: model.B(true), Suction: model.B(true)})
	d := New(pub, nil, nil, st, "d02/cmd", 1)

	via, err := d.Dispatch(context.Background(), "stop-all", 0, "manual")
	is.NoErr(err)
	is.Equal(via, "mqtt")
	is.Equal(pub.payload, "STOP")
	is.Equal(st.Snapshot().Pumps.Irrigation, false)
	is.Equal(st.Snapshot().Pumps.Suction, false)
}

func TestDispatchInvalidCommand(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{connected: true}
	d := New(pub, nil, nil, state.NewStore(), "d02/cmd", 1)

	_, err := d.Dispatch(context.Background(), "self-destruct", 0, "manual")
	is.True(errors.Is(err, model.ErrUnknownCommand))
	is.Equal(pub.calls, 0) // rejected before any network use
}

func TestDispatchDurationOutOfRange(t *testing.T) {
	is := is.New(t)
	d := New(&fakePublisher{connected: true}, nil, nil, state.NewStore(), "d02/cmd", 1)

	_, err := d.Dispatch(context.Background(), "start-irrigation", -1, "manual")
	is.True(errors.Is(err, ErrDurationOutOfRange))
	_, err = d.Dispatch(context.Background(), "start-irrigation", 25*3600, "manual")
	is.True(errors.Is(err, ErrDurationOutOfRange))
}

func TestDispatchFallsBackToRelay(t *testing.T) {
	is := is.New(t)

	var got relayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.NoErr(json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(relayResponse{Success: true, Topic: "d02/cmd", Payload: "SEDOT"})
	}))
	defer srv.Close()

	pub := &fakePublisher{connected: false}
	relay := NewRelayClient(srv.URL, 2*time.Second)
	st := state.NewStore()
	d := New(pub, relay, nil, st, "d02/cmd", 1)

	via, err := d.Dispatch(context.Background(), "start-suction", 120, "api")
	is.NoErr(err)
	is.Equal(via, "relay")
	is.Equal(got.Command, "start-suction")
	is.Equal(got.DurationSec, 120)
	is.Equal(st.Snapshot().Pumps.Suction, true)
}

func TestDispatchRelayRefusal(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(relayResponse{Success: false, Error: "broker unreachable"})
	}))
	defer srv.Close()

	d := New(&fakePublisher{}, NewRelayClient(srv.URL, 2*time.Second), nil, state.NewStore(), "d02/cmd", 1)
	_, err := d.Dispatch(context.Background(), "stop-all", 0, "manual")
	is.True(err != nil)
}

func TestDispatchNoPathAvailable(t *testing.T) {
	is := is.New(t)
	d := New(&fakePublisher{connected: false}, nil, nil, state.NewStore(), "d02/cmd", 1)

	_, err := d.Dispatch(context.Background(), "start-irrigation", 60, "manual")
	is.True(err != nil)
}

func TestRelayBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	is := is.New(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	relay := NewRelayClient(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		_ = relay.Send(context.Background(), model.CmdStopAll, 0)
	}
	// breaker trips at three consecutive failures; later calls fail fast
	is.Equal(hits, 3)
}
