package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Command is an operator action the dashboard can send to the device.
type Command string

const (
	CmdStartIrrigation Command = "start-irrigation"
	CmdStartSuction    Command = "start-suction"
	CmdStopAll         Command = "stop-all"
	CmdEnterAutoMode   Command = "enter-auto-mode"
	CmdResumeSchedule  Command = "resume-schedule"
)

// wireWords maps each command to the plain-text word the firmware parses.
// POMPA/SEDOT are the historical pump words, the rest were added later.
var wireWords = map[Command]string{
	CmdStartIrrigation: "POMPA",
	CmdStartSuction:    "SEDOT",
	CmdStopAll:         "STOP",
	CmdEnterAutoMode:   "AUTO",
	CmdResumeSchedule:  "LANJUT",
}

// pumpTypes records which pump a command addresses, for the audit log.
var pumpTypes = map[Command]string{
	CmdStartIrrigation: "irrigation",
	CmdStartSuction:    "suction",
	CmdStopAll:         "both",
	CmdEnterAutoMode:   "none",
	CmdResumeSchedule:  "none",
}

// ErrUnknownCommand marks a command name outside the fixed vocabulary, so
// callers can tell caller mistakes from transport failures.
var ErrUnknownCommand = errors.New("invalid command")

// ParseCommand normalizes and validates an operator-supplied command name.
// Anything outside the fixed vocabulary is rejected before any network use.
func ParseCommand(name string) (Command, error) {
	c := Command(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := wireWords[c]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// WireWord returns the plain-text payload published on the command topic.
func (c Command) WireWord() string { return wireWords[c] }

// PumpType returns the pump the command targets ("irrigation", "suction",
// "both" or "none").
func (c Command) PumpType() string { return pumpTypes[c] }

// CommandRecord is the audit row written on every dispatch attempt,
// regardless of whether the publish itself succeeded.
type CommandRecord struct {
	ID          int64     `json:"id"`
	Command     string    `json:"command"`
	PumpType    string    `json:"pump_type"`
	DurationSec int       `json:"duration_sec,omitempty"`
	Source      string    `json:"source"` // manual | api | schedule | auto
	IssuedAt    time.Time `json:"issued_at"`
}
