package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"

	"github.com/AdakHaddad/capdash/internal/decoder"
	"github.com/AdakHaddad/capdash/internal/dispatch"
	"github.com/AdakHaddad/capdash/internal/history"
	"github.com/AdakHaddad/capdash/internal/schedule"
	"github.com/AdakHaddad/capdash/internal/services/dashboard"
	"github.com/AdakHaddad/capdash/internal/state"
	"github.com/AdakHaddad/capdash/internal/store"
	"github.com/AdakHaddad/capdash/pkg/mqttconn"
)

func main() {
	// .env.local is the historical local-dev convention; absence is fine
	_ = godotenv.Load(".env.local")
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Record store (SQLite) ===
	// A failed open degrades the command/schedule/history features to a
	// clearly labeled unavailable state instead of crashing the dashboard.
	var records *store.RecordStore
	if rs, err := store.Open(cfg.DBPath); err != nil {
		log.Printf("dashboard: RECORD STORE UNAVAILABLE, running degraded: %v", err)
	} else {
		records = rs
		defer records.Close()
	}

	// === Influx history (optional) ===
	var hist *history.Writer
	if cfg.InfluxURL != "" && cfg.InfluxToken != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		hist = history.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))
	} else if cfg.InfluxURL != "" {
		log.Printf("dashboard: INFLUX_TOKEN missing, influx history disabled")
	}

	// === State + connection manager ===
	st := state.NewStore()
	mqttCfg := mqttconn.Config{
		BrokerURL: cfg.BrokerURL,
		Host:      cfg.BrokerHost,
		Port:      cfg.BrokerPort,
		Username:  cfg.MQTTUser,
		Password:  cfg.MQTTPassword,
		ClientID:  cfg.ClientID,
		Secure:    cfg.Secure,
	}
	mgr := mqttconn.NewManager(mqttCfg, dashboard.ObserveConnStatus)

	// === Dispatcher + schedule runner ===
	relay := dispatch.NewRelayClient(cfg.RelayURL, cfg.RelayTimeout)
	disp := dispatch.New(mgr, relay, auditorOrNil(records), st, cfg.CommandTopic, 1)

	sched := schedule.NewRunner(listerOrNil(records), st, func(ctx context.Context, name string, durationSec int) error {
		_, err := disp.Dispatch(ctx, name, durationSec, "schedule")
		return err
	}, time.Local)

	// === Service ===
	svc := dashboard.NewService(dashboard.Config{
		Topics: decoder.Topics{
			Telemetry: cfg.TelemetryTopic,
			Data:      cfg.DataTopic,
			Status:    cfg.StatusTopic,
			Test:      cfg.TestTopic,
			Legacy:    cfg.LegacyTopic,
		},
		CommandTopic:     cfg.CommandTopic,
		CommandQoS:       1,
		SnapshotInterval: cfg.SnapshotInterval,
		MQTT:             mqttCfg,
	}, mgr, st, records, hist, disp, sched)

	for _, sub := range svc.Subscriptions() {
		mgr.Subscribe(sub)
	}
	if err := mgr.Start(ctx); err != nil {
		// keep serving: Start only errors on a fatal connect problem; the
		// dashboard still shows last state and the relay path still works
		log.Printf("dashboard: broker connect failed: %v", err)
	}
	defer mgr.Stop()

	go svc.Run(ctx)

	if records != nil {
		if err := sched.Start(ctx); err != nil {
			log.Printf("dashboard: schedule runner failed to start: %v", err)
		} else {
			defer sched.Stop()
		}
	}

	// === HTTP ===
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           svc.NewHTTPMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("dashboard: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// === Wait for signal ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("dashboard: shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	cancel()
}

// auditorOrNil avoids handing the dispatcher a typed-nil interface.
func auditorOrNil(rs *store.RecordStore) dispatch.Auditor {
	if rs == nil {
		return nil
	}
	return rs
}

func listerOrNil(rs *store.RecordStore) schedule.Lister {
	if rs == nil {
		return nil
	}
	return rs
}
