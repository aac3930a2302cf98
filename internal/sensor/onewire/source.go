package onewire

import (
	"context"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

// Source is a sensor.Source over one one-wire bus: scan, then acquire.
type Source struct {
	name     string
	bus      Bus
	scanner  *Scanner
	acquirer *Acquirer
	logger   Logger
}

// NewSource creates a Source sampling bus.
func NewSource(name string, bus Bus, clk clock.Clock, cfg AcquirerConfig) *Source {
	return &Source{
		name:     name,
		bus:      bus,
		scanner:  NewScanner(bus),
		acquirer: NewAcquirer(bus, clk, cfg),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the source and its acquirer.
func (s *Source) SetLogger(logger Logger) {
	s.logger = logger
	s.acquirer.SetLogger(logger)
}

// Name returns the configured sensor name.
func (s *Source) Name() string {
	return s.name
}

// Collect scans the bus and acquires every device found.
// An empty bus yields no readings and no error.
func (s *Source) Collect(ctx context.Context) ([]sensor.Reading, error) {
	addrs, err := s.scanner.Scan()
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		s.logger.Info("no devices found", "sensor", s.name, "bus", s.bus.String())
		return nil, nil
	}

	s.logger.Debug("devices found", "sensor", s.name, "count", len(addrs))
	return s.acquirer.Acquire(ctx, addrs)
}

var _ sensor.Source = (*Source)(nil)
