package sensor

import (
	"context"
	"encoding/json"
	"math"
)

// Reading is one engineering-unit measurement taken during a cycle.
//
// Readings are created by a Source and never modified afterwards.
type Reading struct {
	// SensorKind is the device family, e.g. "DS18B20". Used for topic routing.
	SensorKind string

	// Location is where the sensor is installed. Used for topic routing.
	Location string

	// ID is <prefix>_<device address> and is unique per physical device.
	ID string

	// Value is the measurement rounded to two decimals.
	Value float64

	// Unit is the engineering unit, e.g. "C".
	Unit string
}

// payload is the wire form of a Reading. Only the data fields are sent.
type payload struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// MarshalJSON encodes the reading as {"id":…,"value":…,"unit":…}.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(payload{ID: r.ID, Value: r.Value, Unit: r.Unit})
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Source produces the readings of one configured sensor bus or probe.
type Source interface {
	// Name is the configured sensor name, used in logs.
	Name() string

	// Collect samples every device behind the source once. It may return
	// readings together with an error when a fault interrupted sampling
	// part-way through.
	Collect(ctx context.Context) ([]Reading, error)
}
