package servodrv

import (
	"fmt"
	"time"

	"github.com/daedaluz/goserial"
)

// Port is the half-duplex byte transport a ServoDriver talks over. It is
// satisfied by *goserial.Port in production and by a hand-rolled fake in
// tests, the same seam dlsniper-fmradio's radio.Si4713Driver draws
// between i2c.Connector and a test adaptor.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// OpenSerial opens the real half-duplex serial bus at name (e.g.
// "/dev/servo") at 115200 baud, 8N1, raw mode, with the given per-read
// timeout. Grounded on Daedaluz-goserial's MakeRaw/SetSpeed/SetReadTimeout.
func OpenSerial(name string, readTimeout time.Duration) (Port, error) {
	opts := goserial.NewOptions()
	opts.SetReadTimeout(readTimeout)

	port, err := goserial.Open(name, opts)
	if err != nil {
		return nil, fmt.Errorf("servodrv: open %s: %w", name, err)
	}

	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("servodrv: get attr on %s: %w", name, err)
	}
	attrs.MakeRaw()
	attrs.SetSpeed(goserial.B115200)
	if err := port.SetAttr(goserial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("servodrv: set attr on %s: %w", name, err)
	}

	return port, nil
}
