// Package dispatch turns operator actions into outbound wire messages, with
// an HTTP relay fallback and a best-effort audit trail.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AdakHaddad/capdash/internal/model"
	"github.com/AdakHaddad/capdash/internal/state"
)

// ErrDurationOutOfRange rejects durations outside 0..24h before dispatch.
var ErrDurationOutOfRange = errors.New("duration out of range")

// Publisher is the connection manager's publish surface. The dispatcher
// never owns a session of its own for ordinary traffic.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload string) error
}

// Auditor records dispatched commands. nil disables auditing.
type Auditor interface {
	InsertCommand(ctx context.Context, rec model.CommandRecord) error
}

type Dispatcher struct {
	pub   Publisher
	relay *RelayClient
	audit Auditor
	state *state.Store
	topic string
	qos   byte
	now   func() time.Time
}

func New(pub Publisher, relay *RelayClient, audit Auditor, st *state.Store, topic string, qos byte) *Dispatcher {
	return &Dispatcher{pub: pub, relay: relay, audit: audit, state: st, topic: topic, qos: qos, now: time.Now}
}

// Dispatch validates and sends one operator command. The audit row is
// written on every attempt regardless of publish outcome; the optimistic
// state update is applied immediately and stands until the next
// authoritative telemetry decode. Returns the path used ("mqtt" or
// "relay"), or an error only when both paths fail.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, durationSec int, source string) (string, error) {
	cmd, err := model.ParseCommand(name)
	if err != nil {
		return "", err
	}
	if durationSec < 0 || durationSec > 24*3600 {
		return "", fmt.Errorf("%w: %ds", ErrDurationOutOfRange, durationSec)
	}

	if d.audit != nil {
		rec := model.CommandRecord{
			Command:     string(cmd),
			PumpType:    cmd.PumpType(),
			DurationSec: durationSec,
			Source:      source,
			IssuedAt:    d.now(),
		}
		if err := d.audit.InsertCommand(ctx, rec); err != nil {
			log.Printf("dispatch: audit write failed (command still proceeds): %v", err)
		}
	}

	d.applyOptimistic(cmd)

	word := cmd.WireWord()
	if d.pub != nil && d.pub.IsConnected() {
		if err := d.pub.Publish(d.topic, d.qos, false, word); err == nil {
			log.Printf("dispatch: %s -> %s via mqtt topic=%s", cmd, word, d.topic)
			return "mqtt", nil
		} else {
			log.Printf("dispatch: mqtt publish failed, trying relay: %v", err)
		}
	}

	if d.relay == nil {
		return "", fmt.Errorf("dispatch %s: no live session and no relay configured", cmd)
	}
	if err := d.relay.Send(ctx, cmd, durationSec); err != nil {
		return "", fmt.Errorf("dispatch %s: both mqtt and relay failed: %w", cmd, err)
	}
	log.Printf("dispatch: %s -> %s via relay", cmd, word)
	return "relay", nil
}

// applyOptimistic mirrors the command into local pump state ahead of the
// confirming telemetry. STOP forces both pumps off immediately.
func (d *Dispatcher) applyOptimistic(cmd model.Command) {
	if d.state == nil {
		return
	}
	switch cmd {
	case model.CmdStopAll:
		d.state.SetPumps(model.PumpPatch{Irrigation: model.B(false), Suction: model.B(false)})
	case model.CmdStartIrrigation:
		d.state.SetPumps(model.PumpPatch{Irrigation: model.B(true)})
	case model.CmdStartSuction:
		d.state.SetPumps(model.PumpPatch{Suction: model.B(true)})
	}
}
