// Package command defines the tracker's external command vocabulary
// and a single-slot mailbox for delivering them into the control loop,
// following original_source/antenna_tracker.py's process_command
// dispatch table (left/right/home/auto/manual/scan/calibrate/
// calibrate_max, extended here with the angle/limit/VTX commands) and
// main.go's Flask-handler-writes/loop-reads
// single-writer handoff.
package command

import (
	"fmt"
	"sync"
)

// Kind identifies a command's type.
type Kind string

const (
	Left         Kind = "left"
	Right        Kind = "right"
	Home         Kind = "home"
	Auto         Kind = "auto"
	Manual       Kind = "manual"
	Scan         Kind = "scan"
	Calibrate    Kind = "calibrate"     // calibrate_min in spec.md terms
	CalibrateMax Kind = "calibrate_max"
	SetAngle     Kind = "set_angle"
	SetCenter    Kind = "set_center"
	SetLeftLimit Kind = "set_left_limit"
	SetRightLimit Kind = "set_right_limit"
	VtxSet       Kind = "vtx_set"
	VtxScanStart Kind = "vtx_scan_start"
)

// Command is one dispatchable instruction. Only the fields relevant to
// Kind are meaningful; the control loop is the sole reader.
type Command struct {
	Kind Kind

	// AngleDegrees is used by SetAngle.
	AngleDegrees float64

	// SetCenter/SetLeftLimit/SetRightLimit take no parameters: they
	// capture the servo's actual current position when applied.

	// Band/Channel are used by VtxSet.
	Band    byte
	Channel int

	// SettleMs is used by VtxScanStart as the per-channel settle time
	// when it exceeds the configured minimum; smaller values (including
	// 0) leave the configured minimum in force.
	SettleMs int
}

// knownKinds mirrors process_command's dispatch table membership
// check: anything not listed here is INVALID_COMMAND.
var knownKinds = map[Kind]bool{
	Left: true, Right: true, Home: true, Auto: true, Manual: true,
	Scan: true, Calibrate: true, CalibrateMax: true, SetAngle: true,
	SetCenter: true, SetLeftLimit: true, SetRightLimit: true,
	VtxSet: true, VtxScanStart: true,
}

// validBands is the VTX band plan's row set (spec.md §4.3).
var validBands = map[byte]bool{'A': true, 'B': true, 'E': true, 'F': true, 'R': true, 'L': true}

// Validate reports whether the command's Kind is recognized and, for
// vtx_set, whether band/channel fall within the band plan, mapping to
// spec.md's INVALID_COMMAND error kind.
func (c Command) Validate() error {
	if !knownKinds[c.Kind] {
		return fmt.Errorf("command: unknown command kind %q", c.Kind)
	}
	if c.Kind == VtxSet {
		if !validBands[c.Band] {
			return fmt.Errorf("command: invalid vtx band %q", string(c.Band))
		}
		if c.Channel < 1 || c.Channel > 8 {
			return fmt.Errorf("command: invalid vtx channel %d", c.Channel)
		}
	}
	return nil
}

// Bus is a single-slot mailbox: at most one pending command is held at
// a time, newest overwrites oldest, matching the original's
// single-entry app_state command handoff between the HTTP handler and
// the control loop goroutine.
type Bus struct {
	mu      sync.Mutex
	pending *Command
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Submit validates and stores cmd as the pending command, replacing
// any command not yet consumed. Returns an error (without touching the
// pending slot) if cmd is not recognized.
func (b *Bus) Submit(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = &cmd
	return nil
}

// TakePending atomically removes and returns the pending command, if
// any. Called once per control-loop tick.
func (b *Bus) TakePending() (Command, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return Command{}, false
	}
	cmd := *b.pending
	b.pending = nil
	return cmd, true
}
