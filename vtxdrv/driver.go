// Package vtxdrv implements a bit-banged 25-bit LSB-first SPI driver
// for the RX5808-class diversity VTX receiver module, following
// dlsniper-fmradio/radio.Si4713Driver's reset()-via-gpio.DigitalWriter
// pattern generalized from a single reset pin to a three-wire bus.
package vtxdrv

import (
	"fmt"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/gpio"

	"github.com/rrisinglight/trackerd/clock"
)

const (
	low  = 0x0
	high = 0x1
)

const bitHoldDuration = 1 * time.Microsecond

// Mode is the receiver's RF front-end mode.
type Mode int

const (
	ModeMix Mode = iota
	ModeDiversity
)

// Config is the vtxdrv equivalent of Si4713Config.
type Config struct {
	DebugMode bool
	DebugLog  func(format string, v ...interface{})
	Log       func(format string, v ...interface{})

	// ClkPin, DataPin, CsPin name the three bit-bang GPIO lines.
	// Defaults (matching the module's factory wiring) are "27" (CLK),
	// "17" (DATA), "22" (CS, active low).
	ClkPin  string
	DataPin string
	CsPin   string
}

// Validate fills in the default pin assignment, panicking on a missing
// logger the same way Si4713Config.Validate does.
func (c *Config) Validate() error {
	if c.Log == nil {
		panic("vtxdrv: logging function cannot be nil. Use something like log.Printf or an empty function instead")
	}
	if c.DebugMode && c.DebugLog == nil {
		panic("vtxdrv: cannot use debugging mode without configuring a DebugLog function")
	}
	if c.ClkPin == "" {
		c.ClkPin = "27"
	}
	if c.DataPin == "" {
		c.DataPin = "17"
	}
	if c.CsPin == "" {
		c.CsPin = "22"
	}
	return nil
}

// Driver bit-bangs the 25-bit register protocol over three GPIO lines.
type Driver struct {
	name      string
	connector interface{}
	dw        gpio.DigitalWriter
	clk       clock.Clock

	Config

	mode Mode

	// band/channel are the last SetChannel arguments, reapplied after
	// every mode switch since the synthesizer loses its tuned register
	// state across the mode-switch sequence. channel 0 means no
	// channel has ever been selected.
	band    byte
	channel int
}

// NewDriver builds a Driver bound to connector (must implement
// gpio.DigitalWriter, same capability check as Si4713Driver.reset).
func NewDriver(connector interface{}, cfg Config, clk clock.Clock) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		name:      gobot.DefaultName("SkyzoneVTXDriver"),
		connector: connector,
		clk:       clk,
		Config:    cfg,
		mode:      ModeMix,
	}, nil
}

// Name of the device.
func (d *Driver) Name() string { return d.name }

// SetName sets the device name.
func (d *Driver) SetName(name string) { d.name = name }

// Connection retrieves the underlying gobot connection.
func (d *Driver) Connection() gobot.Connection {
	return d.connector.(gobot.Connection)
}

// Start asserts the connector's digital-write capability and drives
// the three lines to their idle state (CLK low, DATA low, CS high).
func (d *Driver) Start() error {
	dw, ok := d.connector.(gpio.DigitalWriter)
	if !ok {
		return fmt.Errorf("vtxdrv: connector does not have a digital write capability")
	}
	d.dw = dw

	if err := d.dw.DigitalWrite(d.ClkPin, low); err != nil {
		return err
	}
	if err := d.dw.DigitalWrite(d.DataPin, low); err != nil {
		return err
	}
	return d.dw.DigitalWrite(d.CsPin, high)
}

// Halt leaves the bus idle; there is no device-side shutdown sequence.
func (d *Driver) Halt() error {
	return d.dw.DigitalWrite(d.CsPin, high)
}

func (d *Driver) sendBit(bit byte) error {
	level := byte(low)
	if bit != 0 {
		level = high
	}
	if err := d.dw.DigitalWrite(d.DataPin, level); err != nil {
		return err
	}
	d.clk.Sleep(bitHoldDuration)
	if err := d.dw.DigitalWrite(d.ClkPin, high); err != nil {
		return err
	}
	d.clk.Sleep(bitHoldDuration)
	if err := d.dw.DigitalWrite(d.ClkPin, low); err != nil {
		return err
	}
	d.clk.Sleep(bitHoldDuration)
	return nil
}

func (d *Driver) send25BitLSB(word uint32) error {
	if err := d.dw.DigitalWrite(d.CsPin, low); err != nil {
		return err
	}
	d.clk.Sleep(bitHoldDuration)

	for i := 0; i < 25; i++ {
		bit := byte((word >> uint(i)) & 0x01)
		if err := d.sendBit(bit); err != nil {
			return err
		}
	}

	d.clk.Sleep(bitHoldDuration)
	return d.dw.DigitalWrite(d.CsPin, high)
}

// SetChannel selects band/channel (channel is 1-8), writing register A
// then, after the synthesizer settle delay, register B.
func (d *Driver) SetChannel(band byte, channel int) error {
	freq, err := lookupFrequency(band, channel)
	if err != nil {
		return err
	}

	if d.DebugMode {
		d.DebugLog("vtxdrv: set channel %s%d -> 0x%05X\n", string(band), channel, freq)
	}

	if err := d.send25BitLSB(registerASelect); err != nil {
		return err
	}
	d.clk.Sleep(500 * time.Microsecond)
	if err := d.send25BitLSB(freq); err != nil {
		return err
	}
	d.band, d.channel = band, channel
	return nil
}

// SwitchToDiversity sends the two back-to-back register-A writes that
// put the module into Diversity mode, then re-applies the
// currently-selected channel (the mode switch does not preserve the
// synthesizer's tuned state). A no-op if already there.
func (d *Driver) SwitchToDiversity() error {
	if d.mode == ModeDiversity {
		return nil
	}
	if err := d.send25BitLSB(registerASelect); err != nil {
		return err
	}
	d.clk.Sleep(500 * time.Microsecond)
	if err := d.send25BitLSB(registerASelect); err != nil {
		return err
	}
	d.mode = ModeDiversity
	return d.reapplyChannel()
}

// SwitchToMix drives the special CS/CLK timing sequence the module
// requires to drop back into Mix mode, then re-applies the
// currently-selected channel. A no-op if already there.
func (d *Driver) SwitchToMix() error {
	if d.mode == ModeMix {
		return nil
	}
	if err := d.dw.DigitalWrite(d.CsPin, high); err != nil {
		return err
	}
	if err := d.dw.DigitalWrite(d.ClkPin, high); err != nil {
		return err
	}
	d.clk.Sleep(100 * time.Millisecond)
	if err := d.dw.DigitalWrite(d.ClkPin, low); err != nil {
		return err
	}
	d.clk.Sleep(500 * time.Millisecond)

	if err := d.send25BitLSB(registerASelect); err != nil {
		return err
	}
	d.clk.Sleep(500 * time.Microsecond)
	if err := d.send25BitLSB(registerASelect); err != nil {
		return err
	}
	d.mode = ModeMix
	return d.reapplyChannel()
}

// reapplyChannel re-issues the last SetChannel call after a mode
// switch. A no-op if no channel has been selected yet.
func (d *Driver) reapplyChannel() error {
	if d.channel == 0 {
		return nil
	}
	return d.SetChannel(d.band, d.channel)
}

// Mode reports the module's current RF front-end mode.
func (d *Driver) Mode() Mode { return d.mode }
