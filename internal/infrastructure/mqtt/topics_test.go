package mqtt

import (
	"errors"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.Status("node-001"), "status/node-001"},
		{"sensor", topics.Sensor("Outdoor", "DS18B20"), "Sensors/Outdoor/DS18B20"},
		{"commands", topics.Commands("node-001"), "cmd/node-001/#"},
		{"config", topics.Config("node-001"), "config/node-001"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s topic = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter string
		valid  bool
	}{
		{"cmd/node-001/#", true},
		{"Sensors/+/DS18B20", true},
		{"#", true},
		{"status/node-001", true},
		{"", false},
		{"cmd/#/x", false},
		{"cmd/node#", false},
		{"Sensors/Out+/DS18B20", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.valid && err != nil {
				t.Errorf("ValidateFilter(%q) error = %v, want nil", tt.filter, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ValidateFilter(%q) error = %v, want ErrInvalidTopic", tt.filter, err)
			}
		})
	}
}

func TestValidatePublishTopic(t *testing.T) {
	for _, topic := range []string{"", "Sensors/#", "Sensors/+/x"} {
		if err := ValidatePublishTopic(topic); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidatePublishTopic(%q) error = %v, want ErrInvalidTopic", topic, err)
		}
	}
	if err := ValidatePublishTopic("Sensors/Outdoor/DS18B20"); err != nil {
		t.Errorf("ValidatePublishTopic() error = %v, want nil", err)
	}
}
