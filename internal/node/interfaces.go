package node

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

// Link brings the physical network up.
type Link interface {
	Up(ctx context.Context) error
}

// TimeSync sets the wall clock after the link is up.
type TimeSync interface {
	Sync(ctx context.Context) error
}

// Restarter performs a full node restart. Implementations usually do not return.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Indicator is the optional status light, lit while transmitting.
type Indicator interface {
	On()
	Off()
}

// NopIndicator is the Indicator used when the node has none.
type NopIndicator struct{}

func (NopIndicator) On()  {}
func (NopIndicator) Off() {}

// Session is the part of *mqtt.Session the loop drives.
type Session interface {
	Connect(ctx context.Context, topics ...string) error
	CheckMessages() int
	IsConnected() bool
	State() mqtt.State
	Disconnect()
}

// Publisher is the part of *telemetry.Publisher the loop drives.
type Publisher interface {
	BeginCycle()
	Topic(r sensor.Reading) string
	Publish(ctx context.Context, r sensor.Reading) error
}

// Journal records cycles and reading outcomes locally.
type Journal interface {
	StartCycle(ctx context.Context, c journal.Cycle) error
	RecordReading(ctx context.Context, e journal.Entry) error
	FinishCycle(ctx context.Context, c journal.Cycle) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CycleRecorder receives a summary of every completed cycle (InfluxDB).
type CycleRecorder interface {
	WriteCycle(cycleID string, readings, failures int, duration time.Duration) error
}

// Logger defines the logging interface for the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
