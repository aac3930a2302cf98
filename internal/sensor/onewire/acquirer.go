package onewire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

const (
	// DefaultSettle is the 12-bit DS18B20 conversion time. It is also the
	// floor: a shorter Settle is raised to it.
	DefaultSettle = 750 * time.Millisecond

	// DefaultSentinel is the DS18x20 power-on temperature register value.
	DefaultSentinel = 85.0
)

// AcquirerConfig describes how readings from one bus are labelled.
type AcquirerConfig struct {
	// SensorKind labels every reading, e.g. "DS18B20".
	SensorKind string

	// Location labels every reading, e.g. "Outdoor".
	Location string

	// IDPrefix is prepended to the device address: <prefix>_<hex>.
	IDPrefix string

	// Unit labels every reading, e.g. "C".
	Unit string

	// Settle is the conversion wait. Values below DefaultSettle, zero
	// included, are raised to DefaultSettle.
	Settle time.Duration

	// Sentinel is the value dropped as "never converted". Zero means DefaultSentinel.
	Sentinel float64
}

// Acquirer runs the convert / settle / read protocol on one bus.
type Acquirer struct {
	bus    Bus
	clock  clock.Clock
	cfg    AcquirerConfig
	logger Logger
}

// NewAcquirer creates an Acquirer. Waits go through clk.
func NewAcquirer(bus Bus, clk clock.Clock, cfg AcquirerConfig) *Acquirer {
	if cfg.Settle < DefaultSettle {
		cfg.Settle = DefaultSettle
	}
	if cfg.Sentinel == 0 {
		cfg.Sentinel = DefaultSentinel
	}
	return &Acquirer{
		bus:    bus,
		clock:  clk,
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the acquirer.
func (a *Acquirer) SetLogger(logger Logger) {
	a.logger = logger
}

// Acquire samples every address once and returns the valid readings in
// address order.
//
// The protocol is:
//  1. Broadcast Convert T to all devices.
//  2. Wait the settling time.
//  3. Read each device in order.
//  4. Drop sentinel values; round the rest to two decimals.
//
// A device-level failure (bad CRC, device gone) is logged and skipped. A
// bus-level failure stops the pass: the readings collected so far are
// returned together with an error wrapping ErrBusFault.
func (a *Acquirer) Acquire(ctx context.Context, addrs []Address) ([]sensor.Reading, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	if err := a.bus.Convert(); err != nil {
		return nil, fmt.Errorf("starting conversion on %s: %w", a.bus, err)
	}

	if err := a.clock.Sleep(ctx, a.cfg.Settle); err != nil {
		return nil, fmt.Errorf("waiting for conversion: %w", err)
	}

	readings := make([]sensor.Reading, 0, len(addrs))
	for i, addr := range addrs {
		raw, err := a.bus.ReadTemperature(addr)
		if err != nil {
			if errors.Is(err, ErrBusFault) {
				a.logger.Error("bus fault, aborting remaining reads",
					"bus", a.bus.String(),
					"address", addr.Hex(),
					"read", len(readings),
					"remaining", len(addrs)-i,
					"error", err,
				)
				return readings, fmt.Errorf("reading %s: %w", addr, err)
			}
			a.logger.Warn("skipping device",
				"bus", a.bus.String(),
				"address", addr.Hex(),
				"error", err,
			)
			continue
		}

		if raw == a.cfg.Sentinel {
			a.logger.Debug("dropping power-on value",
				"address", addr.Hex(),
				"value", raw,
			)
			continue
		}

		readings = append(readings, sensor.Reading{
			SensorKind: a.cfg.SensorKind,
			Location:   a.cfg.Location,
			ID:         a.cfg.IDPrefix + "_" + addr.Hex(),
			Value:      sensor.Round2(raw),
			Unit:       a.cfg.Unit,
		})
	}

	return readings, nil
}
