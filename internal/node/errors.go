package node

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkLink reports that the link could not be brought up at startup.
	ErrNetworkLink = errors.New("node: network link failed")

	// ErrSessionStartup reports that the initial MQTT session could not be opened.
	ErrSessionStartup = errors.New("node: session startup failed")

	// ErrUnhandledCycle wraps a fault that escaped a cycle body.
	ErrUnhandledCycle = errors.New("node: unhandled cycle error")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("node: missing dependency")
)

// RestartError is returned by Run when a startup failure triggered a restart.
// When the Restarter replaces the process, Run never returns at all.
type RestartError struct {
	// Phase is "network" or "session".
	Phase string

	// Err is the startup failure, wrapping ErrNetworkLink or ErrSessionStartup.
	Err error

	// RestartErr is set when the restart itself failed.
	RestartErr error
}

func (e *RestartError) Error() string {
	if e.RestartErr != nil {
		return fmt.Sprintf("restart after %s failure did not happen: %v (restart: %v)", e.Phase, e.Err, e.RestartErr)
	}
	return fmt.Sprintf("restart requested after %s failure: %v", e.Phase, e.Err)
}

func (e *RestartError) Unwrap() error {
	return e.Err
}
