// Package tracker implements the central state machine (spec.md §4.6,
// C6): Manual, Auto, Scan, CalibrateMin, CalibrateMax, with a
// concurrent VtxScan background activity. It arbitrates exclusive
// ownership of the servo and ADC, and mutex-shared ownership of the
// VTX driver, following the shape of dlsniper-fmradio/main.go's single
// gobot.Robot composition but generalized from one device's lifecycle
// into a multi-device state machine.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gobot.io/x/gobot"

	"github.com/rrisinglight/trackerd/anglemap"
	"github.com/rrisinglight/trackerd/clock"
	"github.com/rrisinglight/trackerd/command"
	"github.com/rrisinglight/trackerd/config"
	"github.com/rrisinglight/trackerd/rssi"
)

// Core is the tracker's central state machine.
type Core struct {
	gobot.Eventer

	cfg   config.Config
	clock clock.Clock
	bus   *command.Bus
	log   func(format string, v ...interface{})

	servo Servo
	adc   Adc

	vtxMu      sync.Mutex
	vtx        Vtx
	vtxState   VtxState
	vtxGrid    VtxGrid
	vtxRunning bool

	angleMap anglemap.Map

	mu           sync.Mutex
	mode         Mode
	commanded    int
	leftLimit    int
	rightLimit   int
	lastMoveTime time.Time
	calibration  rssi.Calibration
	pipeline     *rssi.Pipeline
	rssiLeft     int
	rssiRight    int
	scanResult   *ScanResult
}

// New builds a Core. Hardware access happens only from Start/Tick/the
// VTX-scan worker; New performs no I/O.
func New(cfg config.Config, clk clock.Clock, servo Servo, adc Adc, vtx Vtx, bus *command.Bus, log func(format string, v ...interface{})) *Core {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	t := &Core{
		Eventer:    gobot.NewEventer(),
		cfg:        cfg,
		clock:      clk,
		bus:        bus,
		log:        log,
		servo:      servo,
		adc:        adc,
		vtx:        vtx,
		vtxGrid:    NewVtxGrid(),
		angleMap:   anglemap.Map{LeftLimit: cfg.Servo.LeftLimit, RightLimit: cfg.Servo.RightLimit, SpanDegrees: cfg.Servo.SpanDegrees},
		mode:       ModeIdle,
		commanded:  cfg.Servo.CenterPos,
		leftLimit:  cfg.Servo.LeftLimit,
		rightLimit: cfg.Servo.RightLimit,
		pipeline:   rssi.NewPipeline(rssi.Calibration{}, cfg.Tracking.RssiBufferSize),
	}
	t.AddEvent("status")
	t.AddEvent("scan_complete")
	t.AddEvent("vtx_scan_complete")
	return t
}

// SubmitCommand validates and deposits cmd into the single-slot
// mailbox the next Tick will drain. It returns ErrVtxScanInProgress for
// a vtx_scan_start while a VTX scan is running, and ErrInvalidCommand
// for a command the bus rejects; neither case touches the mailbox.
func (t *Core) SubmitCommand(cmd command.Command) error {
	if cmd.Kind == command.VtxScanStart {
		t.vtxMu.Lock()
		running := t.vtxRunning
		t.vtxMu.Unlock()
		if running {
			return ErrVtxScanInProgress
		}
	}
	if err := t.bus.Submit(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}

// Start runs the fatal startup hardware probe (spec.md §7
// HW_UNAVAILABLE): ping the servo and enable torque. On success it
// enters the one-time boot Scan (spec.md §4.6, Any -> Scan "also at
// startup once"); on failure it stays Idle and returns an aggregated
// error.
func (t *Core) Start() error {
	var probeErr *multierror.Error

	if err := t.servo.Ping(); err != nil {
		probeErr = multierror.Append(probeErr, fmt.Errorf("servo ping: %w", err))
	}
	if err := t.servo.SetModePosition(); err != nil {
		probeErr = multierror.Append(probeErr, fmt.Errorf("servo set mode position: %w", err))
	}
	if err := t.servo.SetTorque(true); err != nil {
		probeErr = multierror.Append(probeErr, fmt.Errorf("servo torque enable: %w", err))
	}
	if _, err := t.adc.ReadChannel(t.cfg.ADC.LeftChannel); err != nil {
		probeErr = multierror.Append(probeErr, fmt.Errorf("adc probe: %w", err))
	}

	if probeErr.ErrorOrNil() != nil {
		t.log("tracker: startup hardware probe failed: %v\n", probeErr)
		return fmt.Errorf("%w: %v", ErrHwUnavailable, probeErr)
	}

	t.mu.Lock()
	t.mode = ModeScan
	t.mu.Unlock()
	return nil
}

// Tick runs one control-loop iteration: drain the pending command (if
// any), then act according to the current mode, then publish status.
// Matches spec.md §5's "one state-tick per iteration" scheduling
// model; blocking hardware calls occur inline, exactly as specified.
func (t *Core) Tick() {
	if cmd, ok := t.bus.TakePending(); ok {
		t.applyCommand(cmd)
	}

	mode := t.currentMode()

	defer func() {
		if r := recover(); r != nil {
			// Unexpected exceptions drop the system into Manual and
			// sleep 1s before resuming (spec.md §7).
			t.log("tracker: recovered from panic in Tick: %v\n", r)
			t.mu.Lock()
			t.mode = ModeManual
			t.mu.Unlock()
			t.clock.Sleep(1 * time.Second)
		}
	}()

	switch mode {
	case ModeAuto:
		t.sampleRssi()
		t.autoStep()
	case ModeManual:
		t.sampleRssi()
	case ModeScan:
		t.runScan()
	case ModeCalibrateMin:
		t.runCalibrateMin()
	case ModeCalibrateMax:
		t.runCalibrateMax()
	case ModeIdle:
		// Waiting for Start to complete the hardware probe.
	}

	t.publishStatus()
}

func (t *Core) currentMode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// sampleRssi reads both ADC channels and runs them through the
// calibration/smoothing pipeline, updating the filtered (L,R) the
// status snapshot and Auto's controller read next.
func (t *Core) sampleRssi() {
	rawLeft, err := t.adc.ReadChannel(t.cfg.ADC.LeftChannel)
	if err != nil {
		t.log("tracker: transient ADC read error (left): %v\n", err)
		return // TRANSIENT_IO: leave state unchanged, skip this tick's action
	}
	rawRight, err := t.adc.ReadChannel(t.cfg.ADC.RightChannel)
	if err != nil {
		t.log("tracker: transient ADC read error (right): %v\n", err)
		return
	}

	t.mu.Lock()
	left, right := t.pipeline.Sample(rawLeft, rawRight)
	t.rssiLeft, t.rssiRight = left, right
	t.mu.Unlock()
}

// moveTo clamps position to the current limits, writes it at the given
// speed, and records it as the commanded position.
func (t *Core) moveTo(position int, speed uint16, accel uint8) error {
	t.mu.Lock()
	clamped := clampInt(position, t.leftLimit, t.rightLimit)
	t.mu.Unlock()

	if err := t.servo.WritePosition(clamped, speed, accel); err != nil {
		return err
	}

	t.mu.Lock()
	t.commanded = clamped
	t.lastMoveTime = t.clock.Now()
	t.mu.Unlock()
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// publishStatus builds a snapshot and emits it on the "status" event,
// following Si4713Driver's Eventer-based status publication idiom.
func (t *Core) publishStatus() {
	status := t.Status()
	t.Publish("status", status)
}

// Status returns a copy-on-read snapshot safe for concurrent readers
// (spec.md §5: "updates are published under a short-lived lock or via
// an atomic snapshot").
func (t *Core) Status() Status {
	t.mu.Lock()
	mode := t.mode
	commanded := t.commanded
	left, right := t.rssiLeft, t.rssiRight
	angle := t.angleMap.PositionToAngle(commanded)
	t.mu.Unlock()

	moving := false
	voltageV := 0.0
	tempC := 0
	if status, err := t.servo.ReadStatus(); err == nil {
		voltageV, tempC, moving = servoStatusToReadouts(status)
	}

	t.vtxMu.Lock()
	vtxState := t.vtxState
	vtxGrid := t.vtxGrid
	vtxGrid.Cells = cloneVtxCells(vtxGrid.Cells)
	t.vtxMu.Unlock()

	return Status{
		Mode:              mode,
		Position:          commanded,
		AngleDegrees:      angle,
		RssiLeft:          left,
		RssiRight:         right,
		ServoMoving:       moving,
		ServoVoltageV:     voltageV,
		ServoTemperatureC: tempC,
		Vtx:               vtxState,
		VtxScan:           vtxGrid,
		TimestampS:        float64(t.clock.Now().UnixNano()) / 1e9,
	}
}

// SeedCalibration installs a calibration loaded from persisted state
// (spec.md §6) before Start runs, without requiring a CalibrateMin
// pass at every boot.
func (t *Core) SeedCalibration(cal rssi.Calibration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibration = cal
	t.pipeline.Calibration = cal
}

// CalibrationSnapshot returns the current calibration and whether it
// has ever been set (either seeded or produced by CalibrateMin), so
// callers can decide whether persisting it is meaningful.
func (t *Core) CalibrationSnapshot() (rssi.Calibration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	zero := rssi.Calibration{}
	return t.calibration, t.calibration != zero
}

// LastScanResult returns the most recently completed (or aborted)
// angular scan, if any.
func (t *Core) LastScanResult() (ScanResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scanResult == nil {
		return ScanResult{}, false
	}
	return *t.scanResult, true
}
