package platform

import "errors"

var (
	// ErrLinkTimeout is returned when the interface has no address before the wait ends.
	ErrLinkTimeout = errors.New("platform: network link did not come up")

	// ErrLinkLost is returned by an address check when the interface has no
	// usable address.
	ErrLinkLost = errors.New("platform: network link lost")

	// ErrLinkDaemon is returned when the supervised link daemon cannot be started.
	ErrLinkDaemon = errors.New("platform: link daemon failed to start")

	// ErrCommandFailed wraps a non-zero exit from a configured command.
	ErrCommandFailed = errors.New("platform: command failed")

	// ErrNoCommand is returned when a command-based adapter has nothing to run.
	ErrNoCommand = errors.New("platform: no command configured")

	// ErrPinNotFound is returned when the indicator GPIO name is unknown to the host.
	ErrPinNotFound = errors.New("platform: gpio pin not found")
)
