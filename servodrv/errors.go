package servodrv

import "errors"

// Sentinel error kinds per spec.md §4.1: every ServoDriver operation
// returns one of these (wrapped with context) on failure.
var (
	// ErrBusTimeout is returned when no response frame arrives before the
	// per-I/O deadline.
	ErrBusTimeout = errors.New("servodrv: bus timeout")

	// ErrFrameError is returned when a response frame fails header or
	// checksum validation.
	ErrFrameError = errors.New("servodrv: frame checksum or framing error")

	// ErrNoReply is returned by Ping when the device never answers.
	ErrNoReply = errors.New("servodrv: no reply")

	// ErrDevice wraps a non-zero status/error byte reported by the servo
	// itself (DEVICE_ERROR(code) in spec.md §4.1).
	ErrDevice = errors.New("servodrv: device reported error")
)
