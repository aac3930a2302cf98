package mqtt

import (
	"fmt"
	"strings"
)

// Status payloads published retained on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

const (
	// TopicPrefixStatus is the base for per-client liveness topics.
	TopicPrefixStatus = "status"

	// TopicPrefixSensors is the base for routed telemetry topics.
	TopicPrefixSensors = "Sensors"

	// TopicPrefixCommand is the base for commands addressed to one node.
	TopicPrefixCommand = "cmd"

	// TopicPrefixConfig is the base for retained per-node configuration.
	TopicPrefixConfig = "config"
)

// Topics provides builders for the node's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Status("node-001")            // status/node-001
//	topics.Sensor("Outdoor", "DS18B20")  // Sensors/Outdoor/DS18B20
//	topics.Commands("node-001")          // cmd/node-001/#
type Topics struct{}

// Status returns the liveness topic carrying the will and online/offline state.
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, clientID)
}

// Sensor returns the routed telemetry topic for a location and sensor kind.
func (Topics) Sensor(location, sensorKind string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixSensors, location, sensorKind)
}

// Commands returns the filter matching every command sent to clientID.
func (Topics) Commands(clientID string) string {
	return fmt.Sprintf("%s/%s/#", TopicPrefixCommand, clientID)
}

// Config returns the retained configuration topic of clientID.
func (Topics) Config(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixConfig, clientID)
}

// ValidatePublishTopic reports whether topic can be published to.
// Publish topics must be non-empty and must not contain wildcards.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter reports whether filter is a well-formed subscription filter.
// '#' may only appear as the last level and '+' must occupy a whole level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: misplaced '#' in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: misplaced '+' in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}
