package journal

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeLayout is fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Cycle is one pass of the control loop.
type Cycle struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	SessionState string
	Reconnected  bool
	Readings     int
	Published    int
	Error        string
}

// Entry is one reading and what happened when it was published.
type Entry struct {
	CycleID    string
	Reading    sensor.Reading
	Topic      string
	Published  bool
	Error      string
	RecordedAt time.Time
}
