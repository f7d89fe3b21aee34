// Package adcdrv implements a gobot I2C driver for the ADS1115-class
// dual-channel ADC feeding the two diversity receivers' RSSI outputs
// into raw counts, following dlsniper-fmradio/radio.Si4713Driver's
// shape (embedded i2c.Config, injected Log/DebugLog, Validate-then-New).
package adcdrv

import (
	"fmt"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
)

// ADCConfig is the adcdrv equivalent of Si4713Config.
type ADCConfig struct {
	DebugMode bool
	DebugLog  func(format string, v ...interface{})
	Log       func(format string, v ...interface{})

	// Address is the I2C device address, default 0x48.
	Address int

	// Gain is the PGA full-scale identifier, one of "6.144V", "4.096V",
	// "2.048V", "1.024V", "0.512V", "0.256V". Default "2.048V".
	Gain string

	// ConversionTimeout bounds the OS-bit poll loop per read. Default 10ms,
	// matching spec.md's bounded-latency requirement.
	ConversionTimeout time.Duration

	// PollInterval is the spacing between OS-bit polls. Default 200us.
	PollInterval time.Duration
}

// Validate fills in defaults, following Si4713Config.Validate's
// panic-on-missing-logger, clamp-the-rest style.
func (c *ADCConfig) Validate() error {
	if c.Log == nil {
		panic("adcdrv: logging function cannot be nil. Use something like log.Printf or an empty function instead")
	}
	if c.DebugMode && c.DebugLog == nil {
		panic("adcdrv: cannot use debugging mode without configuring a DebugLog function")
	}
	if c.Address == 0 {
		c.Address = 0x48
	}
	if c.Gain == "" {
		c.Gain = "2.048V"
	}
	if _, _, err := lookupGain(c.Gain); err != nil {
		return err
	}
	if c.ConversionTimeout <= 0 {
		c.ConversionTimeout = 10 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Microsecond
	}
	return nil
}

// Driver talks to the ADC over I2C.
type Driver struct {
	name         string
	i2cAddr      int
	conn         i2c.Connection
	i2cConnector i2c.Connector
	i2c.Config

	ADCConfig
}

// NewDriver creates a new gobot driver for the ADS1115-class ADC.
func NewDriver(connector i2c.Connector, cfg ADCConfig, options ...func(i2c.Config)) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		name:         gobot.DefaultName("ADS1115Driver"),
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		i2cAddr:      cfg.Address,

		ADCConfig: cfg,
	}

	for _, option := range options {
		option(d)
	}

	return d, nil
}

// Name of the device.
func (d *Driver) Name() string { return d.name }

// SetName sets the device name.
func (d *Driver) SetName(name string) { d.name = name }

// Start opens the I2C connection. No device-side initialization is
// required: every Read begins its own single-shot conversion.
func (d *Driver) Start() error {
	if err := d.Validate(); err != nil {
		return err
	}

	bus := d.GetBusOrDefault(d.i2cConnector.GetDefaultBus())
	conn, err := d.i2cConnector.GetConnection(d.i2cAddr, bus)
	if err != nil {
		return err
	}
	d.conn = conn
	return nil
}

// Halt is a no-op: the device has no running state to tear down.
func (d *Driver) Halt() error { return nil }

// Connection retrieves the i2c connection to the device.
func (d *Driver) Connection() gobot.Connection {
	return d.i2cConnector.(gobot.Connection)
}

// ReadChannel runs one single-shot conversion on the given single-ended
// channel (0-3) and returns the result as a 15-bit unsigned count.
func (d *Driver) ReadChannel(channel int) (int, error) {
	mux, err := lookupMux(channel)
	if err != nil {
		return 0, err
	}
	gainBits, _, err := lookupGain(d.Gain)
	if err != nil {
		return 0, err
	}

	configWord := uint16(configOsSingle | configModeSingle | configDataRate860 | configComparatorDisabled) | mux | gainBits

	if d.DebugMode {
		d.DebugLog("adcdrv: write config 0x%04X (mux=0x%04X gain=0x%04X)\n", configWord, mux, gainBits)
	}
	if err := d.writeConfig(configWord); err != nil {
		return 0, fmt.Errorf("adcdrv: write config: %w", err)
	}

	if err := d.pollUntilReady(); err != nil {
		return 0, err
	}

	raw, err := d.readConversion()
	if err != nil {
		return 0, fmt.Errorf("adcdrv: read conversion: %w", err)
	}

	return countsToUnsigned(raw), nil
}

// writeConfig and readRegister talk to the device over the connection's
// raw Read/Write pair (pointer-register-byte then MSB-first data),
// sidestepping the smbus word-transfer endian swap ReadWordData/
// WriteWordData would otherwise apply to this big-endian register map.
func (d *Driver) writeConfig(word uint16) error {
	_, err := d.conn.Write([]byte{regConfig, byte(word >> 8), byte(word)})
	return err
}

func (d *Driver) pollUntilReady() error {
	deadline := time.Now().Add(d.ConversionTimeout)
	for {
		cfg, err := d.readRegister(regConfig)
		if err != nil {
			return err
		}
		if cfg&configOsSingle != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("adcdrv: conversion timeout after %v", d.ConversionTimeout)
		}
		time.Sleep(d.PollInterval)
	}
}

func (d *Driver) readRegister(reg byte) (uint16, error) {
	if _, err := d.conn.Write([]byte{reg}); err != nil {
		return 0, err
	}
	buf := make([]byte, 2)
	if _, err := d.conn.Read(buf); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (d *Driver) readConversion() (int16, error) {
	raw, err := d.readRegister(regConversion)
	if err != nil {
		return 0, err
	}
	return int16(raw), nil
}
