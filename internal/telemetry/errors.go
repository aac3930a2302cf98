package telemetry

import "errors"

var (
	// ErrInvalidRouting is returned for an unknown routing mode.
	ErrInvalidRouting = errors.New("telemetry: invalid routing mode")

	// ErrEncode is returned when a reading cannot be serialised.
	ErrEncode = errors.New("telemetry: encode failed")
)
