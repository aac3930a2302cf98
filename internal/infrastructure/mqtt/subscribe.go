package mqtt

import (
	"fmt"
)

// MessageHandler is the callback signature for received messages.
//
// Handlers run on the goroutine that calls CheckMessages. A returned error
// is logged and does not stop delivery to later subscribers.
type MessageHandler func(topic string, payload []byte) error

// subscriber is a named handler in the delivery list.
type subscriber struct {
	name    string
	handler MessageHandler
}

// Subscribe adds a topic filter to the session.
//
// Filters are tracked and restored on every Connect. When the session is
// Connected the broker subscription is made immediately. Adding a filter
// that is already tracked is a no-op.
func (s *Session) Subscribe(topic string) error {
	if err := ValidateFilter(topic); err != nil {
		return err
	}
	if !s.track(topic) {
		return nil
	}

	if s.State() != StateConnected || s.client == nil {
		return nil
	}

	token := s.client.Subscribe(topic, s.cfg.QoS, s.enqueueMessage)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// track records topic and reports whether it was new.
func (s *Session) track(topic string) bool {
	if _, ok := s.topicSet[topic]; ok {
		return false
	}
	s.topicSet[topic] = struct{}{}
	s.topics = append(s.topics, topic)
	return true
}

// Topics returns the tracked subscription filters in insertion order.
func (s *Session) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// RegisterSubscriber appends handler to the delivery list under name.
// Registering a name twice keeps the first handler and returns false.
//
// Subscribers are keyed by name only. Go funcs are not comparable, so the
// same handler registered under two names is a second subscriber and sees
// every message twice. Callers own the choice of name.
func (s *Session) RegisterSubscriber(name string, handler MessageHandler) bool {
	if handler == nil {
		return false
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subscribers {
		if sub.name == name {
			return false
		}
	}
	s.subscribers = append(s.subscribers, subscriber{name: name, handler: handler})
	return true
}

// SubscriberCount returns the number of registered subscribers.
func (s *Session) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

// dispatch delivers msg to every subscriber in registration order.
func (s *Session) dispatch(msg Message) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, msg)
	}
}

// deliver invokes one subscriber with panic recovery.
func (s *Session) deliver(sub subscriber, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MQTT subscriber panic recovered",
				"subscriber", sub.name,
				"topic", msg.Topic,
				"panic", r,
			)
		}
	}()

	if err := sub.handler(msg.Topic, msg.Payload); err != nil {
		s.logger.Warn("MQTT subscriber returned error",
			"subscriber", sub.name,
			"topic", msg.Topic,
			"error", err,
		)
	}
}
