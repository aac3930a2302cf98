package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic with the session QoS.
//
// When the session is not Connected it returns ErrNotConnected without
// touching the network. A rejected or timed-out publish returns
// ErrPublishFailed and the message is dropped; nothing is queued for later.
// If the failure shows the transport has closed, the session moves to
// Disconnected so the next cycle reconnects.
func (s *Session) Publish(topic string, payload []byte, retain bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if s.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if s.State() != StateConnected || s.client == nil {
		return ErrNotConnected
	}

	token := s.client.Publish(topic, s.cfg.QoS, retain, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		s.checkTransport()
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		s.checkTransport()
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}

// PublishString is a convenience method that publishes a string payload.
func (s *Session) PublishString(topic, payload string, retain bool) error {
	return s.Publish(topic, []byte(payload), retain)
}

// checkTransport drops the session if the transport is no longer open.
func (s *Session) checkTransport() {
	if s.client != nil && !s.client.IsConnectionOpen() {
		s.markLost(fmt.Errorf("%w: transport closed during publish", ErrNotConnected))
	}
}
