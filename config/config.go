// Package config holds the static limits, gains, step sizes and
// thresholds that every other package reads at startup. Values are
// validated once in Validate; nothing here performs I/O.
package config

import "fmt"

// Servo holds the motion limits and step sizes for the pan servo.
//
// Units are raw servo counts unless the field name says otherwise.
type Servo struct {
	// LeftLimit and RightLimit bound every commanded position.
	LeftLimit  int
	RightLimit int

	// CenterPos is the target for the "home" command.
	CenterPos int

	// SpanDegrees is the physical sweep covered by [LeftLimit, RightLimit].
	SpanDegrees float64

	// StepUnits is the manual left/right step (~1 degree by default).
	StepUnits int

	// ScanStepUnits is the angular-scan step (~3 degrees by default).
	ScanStepUnits int

	// MoveSpeed/MoveAccel are the speed/acceleration written with every
	// position command; ScanSpeed is used while sweeping to the scan
	// start position.
	MoveSpeed  uint16
	MoveAccel  uint8
	ScanSpeed  uint16

	// WaitIdleTimeoutMs bounds ServoDriver.WaitIdle outside of scan;
	// ScanWaitIdleTimeoutMs is the tighter bound spec.md requires during
	// the angular scan.
	WaitIdleTimeoutMs     int
	ScanWaitIdleTimeoutMs int
}

// ADC holds the fixed I2C addressing for the dual-channel ADC.
type ADC struct {
	Address      int
	Bus          int
	Gain         string // PGA identifier, e.g. "2.048V"
	LeftChannel  int
	RightChannel int
}

// Tracking holds the differential-proportional controller's tuning.
type Tracking struct {
	// Deadband: |L-R| below this yields no corrective move.
	Deadband int

	// RssiThreshold is the unit "T" in spec.md's piecewise step table.
	RssiThreshold int

	StepSmall  int
	StepMedium int
	StepLarge  int

	AutoSpeed      uint16
	AutoSpeedDelta1 uint16
	AutoSpeedDelta2 uint16

	// CooldownMs is the minimum interval between consecutive auto moves.
	CooldownMs int

	// SuppressBelowUnits: moves smaller than this (in absolute units) are
	// suppressed as near-identical.
	SuppressBelowUnits int

	// RssiBufferSize is the moving-average window N for RssiPipeline.
	// N=1 disables filtering (spec.md §3 RssiBuffers).
	RssiBufferSize int
}

// Scan tunes the angular boresight scan.
type Scan struct {
	SamplesPerStep  int
	SampleIntervalMs int

	// MinSamples: fewer than this at completion means SCAN_UNDERFILLED.
	MinSamples int

	// SmoothingWindow, when > 0, averages |L-R| over this many
	// neighboring samples on each side before selecting the minimum. 0 disables
	// smoothing, which is the canonical behavior (SPEC_FULL.md §9).
	SmoothingWindow int

	// MinTotalRSSI, when > 0, additionally requires total_rssi to exceed
	// this value for a candidate to be eligible as best. 0 disables the
	// gate, which is canonical (SPEC_FULL.md §9).
	MinTotalRSSI int

	PostMoveSettleMs int
}

// Calibration tunes the two calibration passes.
type Calibration struct {
	DurationSeconds int
	SampleRateHz    int
}

// VtxScan tunes the background VTX band sweep.
type VtxScan struct {
	SettleMsMin int
}

// Config aggregates every static tunable. Zero value is invalid; call
// Validate (or Default().Validate()) before use.
type Config struct {
	Servo       Servo
	ADC         ADC
	Tracking    Tracking
	Scan        Scan
	Calibration Calibration
	VtxScan     VtxScan

	// ControlLoopHz is the tick rate of the control-loop task (C6/C8).
	ControlLoopHz int
}

// Default returns the factory tuning from spec.md §4 (ST3215 servo
// limits, ADS1115 ADC addressing, the default tracking/scan constants).
func Default() Config {
	return Config{
		Servo: Servo{
			LeftLimit:             1100,
			RightLimit:            2700,
			CenterPos:             2047,
			SpanDegrees:           146.0,
			StepUnits:             11,
			ScanStepUnits:         33,
			MoveSpeed:             1000,
			MoveAccel:             50,
			ScanSpeed:             1500,
			WaitIdleTimeoutMs:     2000,
			ScanWaitIdleTimeoutMs: 500,
		},
		ADC: ADC{
			Address:      0x48,
			Bus:          1,
			Gain:         "2.048V",
			LeftChannel:  1,
			RightChannel: 0,
		},
		Tracking: Tracking{
			Deadband:           500,
			RssiThreshold:      15,
			StepSmall:          11,
			StepMedium:         33,
			StepLarge:          66,
			AutoSpeed:          800,
			AutoSpeedDelta1:    200,
			AutoSpeedDelta2:    400,
			CooldownMs:         100,
			SuppressBelowUnits: 2,
			RssiBufferSize:     5,
		},
		Scan: Scan{
			SamplesPerStep:   5,
			SampleIntervalMs: 50,
			MinSamples:       3,
			SmoothingWindow:  0,
			MinTotalRSSI:     0,
			PostMoveSettleMs: 500,
		},
		Calibration: Calibration{
			DurationSeconds: 8,
			SampleRateHz:    10,
		},
		VtxScan: VtxScan{
			SettleMsMin: 700,
		},
		ControlLoopHz: 10,
	}
}

// Validate checks range and consistency invariants, following the
// teacher's clamp-and-warn style for soft defaults but erroring on
// structurally impossible configuration (unlike the teacher, which only
// ever clamps — here an inverted servo range cannot be silently fixed).
func (c *Config) Validate() error {
	if c.Servo.LeftLimit >= c.Servo.RightLimit {
		return fmt.Errorf("config: servo left limit %d must be < right limit %d", c.Servo.LeftLimit, c.Servo.RightLimit)
	}
	if c.Servo.CenterPos < c.Servo.LeftLimit || c.Servo.CenterPos > c.Servo.RightLimit {
		return fmt.Errorf("config: servo center %d out of [%d,%d]", c.Servo.CenterPos, c.Servo.LeftLimit, c.Servo.RightLimit)
	}
	if c.Servo.SpanDegrees <= 0 {
		return fmt.Errorf("config: span degrees must be positive, got %f", c.Servo.SpanDegrees)
	}
	if c.Servo.StepUnits <= 0 || c.Servo.ScanStepUnits <= 0 {
		return fmt.Errorf("config: step units must be positive")
	}
	if c.ADC.LeftChannel == c.ADC.RightChannel {
		return fmt.Errorf("config: ADC left/right channel must differ, got %d for both", c.ADC.LeftChannel)
	}
	if c.ADC.LeftChannel < 0 || c.ADC.LeftChannel > 3 || c.ADC.RightChannel < 0 || c.ADC.RightChannel > 3 {
		return fmt.Errorf("config: ADC channel indices must be in [0,3]")
	}
	if c.Tracking.Deadband < 0 || c.Tracking.RssiThreshold <= 0 {
		return fmt.Errorf("config: tracking deadband/threshold must be non-negative/positive")
	}
	if c.Tracking.CooldownMs < 0 {
		return fmt.Errorf("config: cooldown must be non-negative")
	}
	if c.Tracking.RssiBufferSize < 1 {
		c.Tracking.RssiBufferSize = 1
	}
	if c.Scan.SamplesPerStep <= 0 || c.Scan.MinSamples <= 0 {
		return fmt.Errorf("config: scan sample counts must be positive")
	}
	if c.Scan.MinSamples > c.Scan.SamplesPerStep {
		return fmt.Errorf("config: scan min samples %d cannot exceed samples per step %d", c.Scan.MinSamples, c.Scan.SamplesPerStep)
	}
	if c.VtxScan.SettleMsMin < 700 {
		c.VtxScan.SettleMsMin = 700 // spec.md §4.6: minimum 700ms settle, silently clamp like the teacher's Validate
	}
	if c.ControlLoopHz <= 0 {
		c.ControlLoopHz = 10
	}
	return nil
}
