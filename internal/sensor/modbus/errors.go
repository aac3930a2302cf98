package modbus

import "errors"

var (
	// ErrConnect is returned when the slave cannot be reached.
	ErrConnect = errors.New("modbus: connect failed")

	// ErrTransport is returned when the link fails part-way through a cycle.
	// Readings collected before the failure are returned with it.
	ErrTransport = errors.New("modbus: transport failure")

	// ErrUnsupportedProtocol is returned for protocols other than tcp and rtu.
	ErrUnsupportedProtocol = errors.New("modbus: unsupported protocol")

	// ErrUnsupportedRegister is returned for register types other than
	// holding and input.
	ErrUnsupportedRegister = errors.New("modbus: unsupported register type")

	// ErrShortResponse is returned when a slave answers with fewer bytes than requested.
	ErrShortResponse = errors.New("modbus: short response")
)
