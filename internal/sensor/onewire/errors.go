package onewire

import "errors"

// Domain errors for one-wire sampling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrBusScan is returned when enumeration fails for a reason other than
	// "no devices present" (shorted line, corrupted ROM, duplicate address).
	ErrBusScan = errors.New("onewire: bus scan failed")

	// ErrDuplicateAddress is wrapped in ErrBusScan when the same ROM code
	// is enumerated twice in one scan.
	ErrDuplicateAddress = errors.New("onewire: duplicate device address")

	// ErrInvalidAddress is wrapped in ErrBusScan when an enumerated ROM
	// code fails its CRC.
	ErrInvalidAddress = errors.New("onewire: invalid device address")

	// ErrBusFault is returned for bus-level transaction failures. During
	// acquisition it aborts the remaining reads of the cycle.
	ErrBusFault = errors.New("onewire: bus fault")

	// ErrCRCMismatch is returned when a device scratchpad fails its CRC.
	ErrCRCMismatch = errors.New("onewire: scratchpad CRC mismatch")

	// ErrDeviceAbsent is returned when a device does not drive the bus
	// during a scratchpad read (all bits read back as 1).
	ErrDeviceAbsent = errors.New("onewire: device did not respond")

	// ErrUnsupportedFamily is returned for ROM family codes that are not
	// DS18x20 temperature sensors.
	ErrUnsupportedFamily = errors.New("onewire: unsupported device family")
)
