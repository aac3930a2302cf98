package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing while the session is not Connected.
	// Nothing is written to the network.
	ErrNotConnected = errors.New("mqtt: session not connected")

	// ErrHandshakeFailed is returned when the broker handshake, the online
	// status publish, or the initial subscriptions fail during Connect.
	ErrHandshakeFailed = errors.New("mqtt: handshake failed")

	// ErrPublishFailed is returned when a publish is rejected or times out.
	// Failed publishes are dropped, never queued.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrTimeout is returned when a broker acknowledgement does not arrive in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
