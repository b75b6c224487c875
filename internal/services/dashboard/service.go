// Package dashboard wires the decoder, state store, connection manager,
// dispatcher and persistence into the dashboard backend service.
package dashboard

import (
	"context"
	"log"
	"time"

	"github.com/AdakHaddad/capdash/internal/decoder"
	"github.com/AdakHaddad/capdash/internal/dispatch"
	"github.com/AdakHaddad/capdash/internal/history"
	"github.com/AdakHaddad/capdash/internal/model"
	"github.com/AdakHaddad/capdash/internal/schedule"
	"github.com/AdakHaddad/capdash/internal/state"
	"github.com/AdakHaddad/capdash/internal/store"
	"github.com/AdakHaddad/capdash/pkg/dedup"
	"github.com/AdakHaddad/capdash/pkg/mqttconn"
)

type Config struct {
	Topics       decoder.Topics
	CommandTopic string
	CommandQoS   byte

	SnapshotInterval time.Duration
	MQTT             mqttconn.Config
}

type inbound struct {
	topic   string
	payload []byte
}

// Service owns the single message-handling path: paho delivers on its own
// goroutines, but everything funnels through one channel consumed by one
// goroutine, so decode and merge happen strictly in arrival order.
type Service struct {
	cfg Config

	dec     *decoder.Decoder
	st      *state.Store
	records *store.RecordStore // nil → record-store features degraded
	hist    *history.Writer    // nil → no influx history
	mgr     *mqttconn.Manager
	ded     *dedup.Deduper
	disp    *dispatch.Dispatcher
	sched   *schedule.Runner

	msgCh chan inbound
}

func NewService(cfg Config, mgr *mqttconn.Manager, st *state.Store, records *store.RecordStore,
	hist *history.Writer, disp *dispatch.Dispatcher, sched *schedule.Runner) *Service {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Minute
	}
	return &Service{
		cfg:     cfg,
		dec:     decoder.New(cfg.Topics),
		st:      st,
		records: records,
		hist:    hist,
		mgr:     mgr,
		// QoS1 redeliveries arrive within seconds of a reconnect. The TTL
		// stays short because the compact format's c= counter is optional:
		// two legitimately identical counter-less frames hash the same, and
		// a long window would drop the second one.
		ded:     dedup.New(90*time.Second, 20000),
		disp:    disp,
		sched:   sched,
		msgCh:   make(chan inbound, 256),
	}
}

// Subscriptions returns the fixed topic set the connection manager keeps
// subscribed across reconnects. The data topic is the QoS1 path (the
// compact format historically published at QoS1), so it gets dedup.
func (s *Service) Subscriptions() []mqttconn.Subscription {
	subs := []mqttconn.Subscription{
		{Topic: s.cfg.Topics.Telemetry, QoS: 0, Handler: s.enqueue},
		{Topic: s.cfg.Topics.Data, QoS: 1, Handler: s.enqueueDeduped},
		{Topic: s.cfg.Topics.Status, QoS: 0, Handler: s.enqueue},
		{Topic: s.cfg.Topics.Test, QoS: 0, Handler: s.enqueue},
	}
	if s.cfg.Topics.Legacy != "" {
		subs = append(subs, mqttconn.Subscription{Topic: s.cfg.Topics.Legacy, QoS: 0, Handler: s.enqueue})
	}
	return subs
}

func (s *Service) enqueue(topic string, payload []byte) {
	select {
	case s.msgCh <- inbound{topic: topic, payload: payload}:
	default:
		log.Printf("dashboard: message queue full, dropping message on %s", topic)
	}
}

func (s *Service) enqueueDeduped(topic string, payload []byte) {
	if s.ded.SeenPayload(payload) {
		return
	}
	s.enqueue(topic, payload)
}

// Run consumes the message channel and the snapshot ticker until ctx ends.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	var lastPersisted time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.msgCh:
			s.handle(msg.topic, string(msg.payload))
		case <-ticker.C:
			lastPersisted = s.persistSnapshot(ctx, lastPersisted)
		}
	}
}

// handle runs one payload through decode → reduce. Decode errors are fully
// contained here: logged with truncated payload, state untouched.
func (s *Service) handle(topic, raw string) {
	res := s.dec.Decode(topic, raw)
	switch res.Kind {
	case decoder.KindDecoded:
		decodedTotal.WithLabelValues(string(res.Source)).Inc()
		s.st.Apply(res)
	case decoder.KindIgnored:
		ignoredTotal.Inc()
	case decoder.KindUnrecognized:
		unrecognizedTotal.Inc()
		log.Printf("dashboard: unrecognized payload on %s: %q", topic, truncate(raw, 120))
	}
}

// persistSnapshot writes the current state to the history sinks, skipping
// when nothing new arrived since the last write. Best-effort on both sinks.
func (s *Service) persistSnapshot(ctx context.Context, lastPersisted time.Time) time.Time {
	snap := s.st.Snapshot()
	if snap.LastUpdate.IsZero() || !snap.LastUpdate.After(lastPersisted) {
		return lastPersisted
	}
	if s.records != nil {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.records.InsertSnapshot(cctx, snap.Sensors, snap.Pumps, snap.Source, snap.LastUpdate); err != nil {
			log.Printf("dashboard: history insert failed: %v", err)
		}
		cancel()
	}
	s.hist.WriteSnapshot(snap)
	return snap.LastUpdate
}

// DispatchCommand is the single entry point for operator, API and
// scheduled commands.
func (s *Service) DispatchCommand(ctx context.Context, name string, durationSec int, source string) (string, error) {
	via, err := s.disp.Dispatch(ctx, name, durationSec, source)
	switch {
	case err != nil:
		commandErrorsTotal.Inc()
	case via == "relay":
		relayFallbacksTotal.Inc()
	}
	return via, err
}

// State returns the current snapshot, for handlers.
func (s *Service) State() state.Snapshot { return s.st.Snapshot() }

// ConnStatus reports the broker session status.
func (s *Service) ConnStatus() model.ConnStatus {
	if s.mgr == nil {
		return model.ConnIdle
	}
	return s.mgr.Status()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
