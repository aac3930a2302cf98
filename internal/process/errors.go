package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the daemon is already supervised.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNoBinary is returned when the Config has no binary to run.
	ErrNoBinary = errors.New("process: binary is required")

	// ErrUnhealthy wraps the exit caused by repeated health check failures.
	ErrUnhealthy = errors.New("process: health check failed")
)
