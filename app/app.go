// Package app is the composition root: it wires the real hardware
// drivers, the raspi adaptor, and the TrackerCore state machine into a
// running gobot.Robot, the same shape as the teacher's main.go but
// generalized from one FM-transmitter device to the tracker's three
// devices and its two background loops (control tick + VTX scan
// worker, launched on demand by the core itself).
package app

import (
	"fmt"
	"log"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"

	"github.com/rrisinglight/trackerd/adcdrv"
	"github.com/rrisinglight/trackerd/clock"
	"github.com/rrisinglight/trackerd/command"
	"github.com/rrisinglight/trackerd/config"
	"github.com/rrisinglight/trackerd/servodrv"
	"github.com/rrisinglight/trackerd/tracker"
	"github.com/rrisinglight/trackerd/vtxdrv"
)

// Config collects everything the composition root needs that isn't a
// domain tuning constant: device paths and the optional calibration
// persistence location.
type Config struct {
	Tracking config.Config

	// SerialDevice is the half-duplex smart-servo bus (e.g. "/dev/ttyS0").
	SerialDevice string

	// CalibrationPath, when non-empty, is read by New and written after
	// every CalibrateMin pass that changes the noise floors or offset
	// (spec.md §6 persisted state).
	CalibrationPath string

	// ClkPin/DataPin/CsPin wire vtxdrv's bit-bang GPIOs; empty strings
	// take vtxdrv.Config's own defaults.
	ClkPin, DataPin, CsPin string
}

// Application owns the wired robot and the tracker core driving it.
type Application struct {
	Robot *gobot.Robot
	Core  *tracker.Core
	Bus   *command.Bus

	cfg Config
}

// New builds every driver and the tracker core. Its only I/O is opening
// the servo serial port and reading the calibration file: hardware
// probing happens in Core.Start, called from the robot's work function
// exactly as the teacher's main.go calls Si4713 setup there.
func New(cfg Config) (*Application, error) {
	adaptor := raspi.NewAdaptor()

	port, err := servodrv.OpenSerial(cfg.SerialDevice, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("app: open servo serial port: %w", err)
	}
	servo, err := servodrv.NewDriver(port, servodrv.Config{
		Log:      log.Printf,
		DebugLog: log.Printf,
	})
	if err != nil {
		return nil, fmt.Errorf("app: new servo driver: %w", err)
	}

	adc, err := adcdrv.NewDriver(adaptor, adcdrv.ADCConfig{
		Address: cfg.Tracking.ADC.Address,
		Gain:    cfg.Tracking.ADC.Gain,
		Log:     log.Printf,
	}, i2c.WithBus(cfg.Tracking.ADC.Bus))
	if err != nil {
		return nil, fmt.Errorf("app: new adc driver: %w", err)
	}

	vtx, err := vtxdrv.NewDriver(adaptor, vtxdrv.Config{
		Log:     log.Printf,
		ClkPin:  cfg.ClkPin,
		DataPin: cfg.DataPin,
		CsPin:   cfg.CsPin,
	}, clock.Real{})
	if err != nil {
		return nil, fmt.Errorf("app: new vtx driver: %w", err)
	}

	bus := command.NewBus()
	core := tracker.New(cfg.Tracking, clock.Real{}, servo, adc, vtx, bus, log.Printf)

	if cfg.CalibrationPath != "" {
		if cal, ok, err := LoadCalibration(cfg.CalibrationPath); err != nil {
			log.Printf("app: failed to load calibration from %s: %v\n", cfg.CalibrationPath, err)
		} else if ok {
			core.SeedCalibration(cal)
		}
	}

	work := func() {
		if err := core.Start(); err != nil {
			log.Fatalln(err)
		}

		persisted, _ := core.CalibrationSnapshot()
		gobot.Every(time.Second/time.Duration(cfg.Tracking.ControlLoopHz), func() {
			core.Tick()

			if cfg.CalibrationPath != "" {
				cal, ok := core.CalibrationSnapshot()
				if ok && (cal.NoiseFloorLeft != persisted.NoiseFloorLeft || cal.NoiseFloorRight != persisted.NoiseFloorRight || cal.Offset != persisted.Offset) {
					status := core.Status()
					if err := SaveCalibration(cfg.CalibrationPath, cal, status.TimestampS); err != nil {
						log.Printf("app: failed to persist calibration: %v\n", err)
					} else {
						persisted = cal
					}
				}
			}
		})
	}

	// servo is reached over a raw serial Port, not through the raspi
	// adaptor, so unlike adc/vtx it is not registered with the robot as a
	// gobot.Device; Application builds it with NewDriver and does not
	// call its Halt.
	robot := gobot.NewRobot("antenna tracker",
		[]gobot.Connection{adaptor},
		[]gobot.Device{adc, vtx},
		work,
	)

	return &Application{Robot: robot, Core: core, Bus: bus, cfg: cfg}, nil
}

// Start runs the wired robot; it blocks until the robot stops.
func (a *Application) Start() error {
	return a.Robot.Start()
}
