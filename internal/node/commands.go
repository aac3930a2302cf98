package node

// HandleMessage is a diagnostic subscriber: it logs each inbound command
// or config message and acts on none of them. It only receives traffic when
// mqtt.subscribe_inbound is enabled.
func (l *Loop) HandleMessage(topic string, payload []byte) error {
	l.logger.Info("inbound message", "topic", topic, "bytes", len(payload))
	return nil
}
