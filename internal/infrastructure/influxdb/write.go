package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

// Measurement names.
const (
	measurementReadings = "sensor_readings"
	measurementCycles   = "node_cycles"
)

// WriteReading queues one reading. It satisfies telemetry.Archive.
//
// The write is non-blocking; the returned error is only ErrNotConnected.
func (c *Client) WriteReading(r sensor.Reading) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(readingPoint(c.nodeID, r, c.now()))
	return nil
}

// WriteCycle records a summary of one control-loop cycle.
func (c *Client) WriteCycle(cycleID string, readings, failures int, duration time.Duration) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	point := write.NewPoint(
		measurementCycles,
		map[string]string{"node_id": c.nodeID},
		map[string]interface{}{
			"cycle_id":         cycleID,
			"readings":         readings,
			"publish_failures": failures,
			"duration_ms":      duration.Milliseconds(),
		},
		c.now(),
	)
	c.writer.WritePoint(point)
	return nil
}

// readingPoint maps a reading to a point. Routing fields become tags so
// they can be grouped on; the value is the only field. Empty tags are
// omitted because line protocol rejects empty tag values.
func readingPoint(nodeID string, r sensor.Reading, ts time.Time) *write.Point {
	tags := make(map[string]string, 5)
	for k, v := range map[string]string{
		"node_id":     nodeID,
		"sensor_id":   r.ID,
		"sensor_kind": r.SensorKind,
		"location":    r.Location,
		"unit":        r.Unit,
	} {
		if v != "" {
			tags[k] = v
		}
	}

	return write.NewPoint(
		measurementReadings,
		tags,
		map[string]interface{}{
			"value": r.Value,
		},
		ts,
	)
}
