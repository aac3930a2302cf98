package platform

import (
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/devices/ds248x"
	"periph.io/x/periph/host"

	"github.com/nerrad567/gray-logic-node/internal/sensor/onewire"
)

// InitHost loads the periph host drivers. Call once before OpenOneWire or OpenLED.
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialising host drivers: %w", err)
	}
	return nil
}

// OneWireMaster is a DS2482/DS2483 one-wire master on an I²C bus.
type OneWireMaster struct {
	i2c i2c.BusCloser
	dev *ds248x.Dev
}

// OpenOneWire opens the I²C bus by name ("" = first available) and the
// one-wire master at addr.
func OpenOneWire(i2cBus string, addr uint16) (*OneWireMaster, error) {
	bus, err := i2creg.Open(i2cBus)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", i2cBus, err)
	}

	opts := ds248x.DefaultOpts
	dev, err := ds248x.New(bus, addr, &opts)
	if err != nil {
		bus.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("opening one-wire master at 0x%02x: %w", addr, err)
	}

	return &OneWireMaster{i2c: bus, dev: dev}, nil
}

// Bus returns the one-wire bus behind the master.
func (m *OneWireMaster) Bus() *onewire.PeriphBus {
	return onewire.NewPeriphBus(m.dev)
}

// Close releases the I²C bus.
func (m *OneWireMaster) Close() error {
	if err := m.dev.Halt(); err != nil {
		m.i2c.Close() //nolint:errcheck // Already returning an error
		return fmt.Errorf("halting one-wire master: %w", err)
	}
	return m.i2c.Close()
}
