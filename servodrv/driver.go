// Package servodrv implements the half-duplex smart-servo wire protocol
// for the pan axis (ST3215-class, SMS/STS memory map), following the
// request/response-over-a-byte-Port shape of
// dlsniper-fmradio/radio.Si4713Driver generalized from I2C to a raw
// serial half-duplex bus.
package servodrv

import (
	"fmt"
	"time"
)

// Config mirrors the teacher's Si4713Config pattern: an injectable
// logger plus Validate, rather than bare constructor arguments.
type Config struct {
	ID byte

	// IOTimeout bounds every single request/response exchange.
	IOTimeout time.Duration

	DebugMode bool
	DebugLog  func(format string, v ...interface{})
	Log       func(format string, v ...interface{})
}

// Validate fills in defaults and nils out logging to no-ops, the same
// way Si4713Config.Validate does.
func (c *Config) Validate() error {
	if c.IOTimeout <= 0 {
		c.IOTimeout = 50 * time.Millisecond
	}
	if c.Log == nil {
		c.Log = func(string, ...interface{}) {}
	}
	if c.DebugLog == nil {
		c.DebugLog = func(string, ...interface{}) {}
	}
	return nil
}

// Status is the decoded set of present-* registers read back in one
// ReadStatus call.
type Status struct {
	Position    int
	Speed       int
	Load        int
	VoltageDv   int // tenths of a volt
	TempC       int
	Moving      bool
	CurrentMa   int // signed, sign-magnitude decoded
}

// Driver talks to a single servo over a Port.
type Driver struct {
	port Port
	cfg  Config
	name string
}

// NewDriver builds a Driver bound to port with the given config. The
// config is validated (and defaulted) in place, matching
// Si4713Driver's constructor-time Validate call.
func NewDriver(port Port, cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{port: port, cfg: cfg, name: "ST3215"}, nil
}

// Name returns the driver's identity, following gobot.Driver's Name/SetName idiom.
func (d *Driver) Name() string { return d.name }

// SetName sets the driver's identity.
func (d *Driver) SetName(name string) { d.name = name }

// Halt releases the underlying port.
func (d *Driver) Halt() error {
	return d.port.Close()
}

func (d *Driver) exchange(instr byte, params []byte, expectParams int) ([]byte, error) {
	req := buildRequest(d.cfg.ID, instr, params)
	d.cfg.DebugLog("servodrv: tx % x", req)
	if _, err := d.port.Write(req); err != nil {
		return nil, fmt.Errorf("servodrv: write: %w", err)
	}

	want := responseLength(expectParams)
	buf := make([]byte, want)
	total := 0
	deadline := time.Now().Add(d.cfg.IOTimeout)
	for total < want {
		if time.Now().After(deadline) {
			return nil, ErrBusTimeout
		}
		n, err := d.port.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("servodrv: read: %w", err)
		}
		total += n
	}
	d.cfg.DebugLog("servodrv: rx % x", buf)

	errByte, respParams, err := parseResponse(buf)
	if err != nil {
		return nil, err
	}
	if errByte != 0 {
		return nil, fmt.Errorf("%w: code %d", ErrDevice, errByte)
	}
	return respParams, nil
}

// Ping checks the servo answers on the bus, returning ErrNoReply (via
// ErrBusTimeout) if it never does.
func (d *Driver) Ping() error {
	_, err := d.exchange(instrPing, nil, 0)
	if err != nil {
		if err == ErrBusTimeout {
			return ErrNoReply
		}
		return err
	}
	return nil
}

// SetTorque enables or disables the servo's holding torque.
func (d *Driver) SetTorque(enabled bool) error {
	v := byte(0)
	if enabled {
		v = 1
	}
	_, err := d.exchange(instrWrite, []byte{regTorqueEnable, v}, 0)
	return err
}

// SetModePosition writes the mode register to closed-loop position
// mode, the one-time setup WritePosition/WaitIdle rely on.
func (d *Driver) SetModePosition() error {
	_, err := d.exchange(instrWrite, []byte{regMode, 0}, 0)
	return err
}

// WritePosition commands the servo to position (raw counts) at the
// given speed/acceleration, following working_st3215.py's WritePosEx
// signature (position, speed, accel).
func (d *Driver) WritePosition(position int, speed uint16, accel uint8) error {
	params := []byte{regAcceleration, accel}
	params = append(params, le16Bytes(uint16(position))...)
	params = append(params, le16Bytes(speed)...)
	_, err := d.exchange(instrWrite, params, 0)
	return err
}

// ReadPosition reads back the present-position register only, used by
// the control loop's per-tick RSSI/position sampling where the rest of
// Status isn't needed.
func (d *Driver) ReadPosition() (int, error) {
	params, err := d.exchange(instrRead, []byte{regPresentPos, 2}, 2)
	if err != nil {
		return 0, err
	}
	return int(le16(params)), nil
}

// ReadStatus reads the full present-* block in one request, decoding
// the sign-magnitude current register per spec.md §4.1.
func (d *Driver) ReadStatus() (Status, error) {
	// present position..current spans regPresentPos(0x38) through
	// regPresentCurrent+1(0x46), 15 bytes total.
	const spanLen = 0x46 + 1 - regPresentPos
	params, err := d.exchange(instrRead, []byte{regPresentPos, spanLen}, spanLen)
	if err != nil {
		return Status{}, err
	}

	at := func(reg int) []byte {
		off := reg - regPresentPos
		return params[off:]
	}

	pos := int(le16(at(regPresentPos)))
	speed := int(int16(le16(at(regPresentSpeed))))
	load := int(le16(at(regPresentLoad)))
	voltage := int(params[regPresentVoltage-regPresentPos])
	temp := int(params[regPresentTemp-regPresentPos])
	moving := params[regMoving-regPresentPos] != 0
	current := decodeSignedCurrent(le16(at(regPresentCurrent)))

	return Status{
		Position:  pos,
		Speed:     speed,
		Load:      load,
		VoltageDv: voltage,
		TempC:     temp,
		Moving:    moving,
		CurrentMa: current,
	}, nil
}

// WaitIdle polls Moving until it clears or timeout elapses, reporting
// ErrBusTimeout if the servo is still moving when the deadline passes.
func (d *Driver) WaitIdle(timeout time.Duration, pollInterval time.Duration, sleep func(time.Duration)) error {
	deadline := time.Now().Add(timeout)
	for {
		status, err := d.ReadStatus()
		if err != nil {
			return err
		}
		if !status.Moving {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusTimeout
		}
		sleep(pollInterval)
	}
}
