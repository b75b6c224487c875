package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	simulator "github.com/AdakHaddad/capdash/internal/device-simulator"
	"github.com/AdakHaddad/capdash/pkg/mqttconn"
)

func main() {
	host := flag.String("broker", "test.mosquitto.org", "MQTT broker host")
	port := flag.Int("port", 0, "MQTT broker port (0 = scheme default)")
	user := flag.String("user", "", "MQTT username")
	pass := flag.String("pass", "", "MQTT password")
	secure := flag.Bool("secure", false, "connect over TLS")
	clientID := flag.String("client-id", "capdash-sim", "MQTT client ID")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	telemetry := flag.String("telemetry-topic", "d02/telemetry", "telemetry topic")
	data := flag.String("data-topic", "d02/data", "compact data topic")
	status := flag.String("status-topic", "d02/status", "status topic")
	command := flag.String("command-topic", "d02/cmd", "command topic")
	flag.Parse()

	cfg := mqttconn.Config{
		Host:     *host,
		Port:     *port,
		Username: *user,
		Password: *pass,
		ClientID: *clientID,
		Secure:   *secure,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := mqttconn.NewManager(cfg, nil)
	gen := simulator.NewGenerator(*seed)
	sim := simulator.New(mgr, gen, simulator.Topics{
		Telemetry: *telemetry,
		Data:      *data,
		Status:    *status,
		Command:   *command,
	})

	mgr.Subscribe(sim.CommandSubscription())
	if err := mgr.Start(ctx); err != nil {
		log.Fatalf("simulator: %v", err)
	}
	defer mgr.Stop()

	go sim.Run(ctx, *interval)
	log.Printf("simulator: publishing every %s", *interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
}
