// Package simulator imitates the irrigation device on a live broker:
// telemetry out in rotating wire formats, command words in.
package simulator

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/AdakHaddad/capdash/pkg/mqttconn"
)

type Topics struct {
	Telemetry string
	Data      string
	Status    string
	Command   string
}

type Simulator struct {
	mgr    *mqttconn.Manager
	gen    *Generator
	topics Topics
}

func New(mgr *mqttconn.Manager, gen *Generator, topics Topics) *Simulator {
	return &Simulator{mgr: mgr, gen: gen, topics: topics}
}

// CommandSubscription reacts to the dashboard's command words the way the
// firmware does, so the next telemetry frame confirms the pump change.
func (s *Simulator) CommandSubscription() mqttconn.Subscription {
	return mqttconn.Subscription{
		Topic: s.topics.Command,
		QoS:   1,
		Handler: func(_ string, payload []byte) {
			word := strings.ToUpper(strings.TrimSpace(string(payload)))
			switch word {
			case "POMPA":
				s.gen.SetPumps(true, false)
			case "SEDOT":
				s.gen.SetPumps(false, true)
			case "STOP":
				s.gen.SetPumps(false, false)
			case "AUTO":
				s.gen.SetMode("AUTO")
			case "LANJUT":
				s.gen.SetMode("SCHEDULE")
			default:
				log.Printf("simulator: unknown command word %q", word)
				return
			}
			log.Printf("simulator: applied command %s", word)
		},
	}
}

// Run publishes one frame per interval, rotating through the wire formats
// (the nested JSON shape most often, like the real device mix), plus a
// status heartbeat every tenth frame.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			topic, payload, qos := s.frame(n)
			if err := s.mgr.Publish(topic, qos, false, payload); err != nil {
				log.Printf("simulator: publish failed: %v", err)
				continue
			}
			log.Printf("simulator: %s <- %s", topic, payload)
		}
	}
}

func (s *Simulator) frame(n int) (topic, payload string, qos byte) {
	switch {
	case n%10 == 0:
		return s.topics.Status, s.gen.NextStatus(), 0
	case n%7 == 0:
		return s.topics.Data, s.gen.NextCompact(), 1
	case n%5 == 0:
		return s.topics.Telemetry, s.gen.NextSummary(), 0
	case n%3 == 0:
		return s.topics.Telemetry, s.gen.NextFlatLegacy(), 0
	default:
		return s.topics.Telemetry, s.gen.NextNested(), 0
	}
}
