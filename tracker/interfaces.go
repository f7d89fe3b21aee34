package tracker

import (
	"time"

	"github.com/rrisinglight/trackerd/servodrv"
)

// Servo is the subset of servodrv.Driver TrackerCore needs. Defining
// it here (rather than depending on *servodrv.Driver directly) lets
// tests substitute a fake, the same seam
// dlsniper-fmradio/radio_test.go draws between Si4713Driver and
// I2CTestAdaptor, just one level higher.
type Servo interface {
	Ping() error
	SetTorque(enabled bool) error
	SetModePosition() error
	WritePosition(position int, speed uint16, accel uint8) error
	ReadPosition() (int, error)
	ReadStatus() (servodrv.Status, error)
	WaitIdle(timeout, pollInterval time.Duration, sleep func(time.Duration)) error
}

// Adc is the subset of adcdrv.Driver TrackerCore needs.
type Adc interface {
	ReadChannel(channel int) (int, error)
}

// Vtx is the subset of vtxdrv.Driver TrackerCore needs.
type Vtx interface {
	SetChannel(band byte, channel int) error
	SwitchToDiversity() error
	SwitchToMix() error
}
