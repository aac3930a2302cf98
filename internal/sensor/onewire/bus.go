package onewire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/periph/conn/onewire"
)

// ROM and function commands (DS18B20 datasheet, p.10-12).
const (
	cmdMatchROM        = 0x55
	cmdSkipROM         = 0xCC
	cmdConvertT        = 0x44
	cmdReadScratchpad  = 0xBE
	scratchpadLen      = 9
	ds18s20Divisor     = 2.0
	ds18b20Divisor     = 16.0
	romCommandOverhead = 9
)

// Bus is the set of bus operations sampling needs.
type Bus interface {
	// String names the bus for logs.
	String() string

	// Search enumerates all devices. No devices is an empty result, not an error.
	Search() ([]Address, error)

	// Convert broadcasts a temperature conversion to every device.
	Convert() error

	// ReadTemperature reads one device's scratchpad and returns °C.
	// Bus-level failures wrap ErrBusFault.
	ReadTemperature(addr Address) (float64, error)
}

// PeriphBus adapts a periph.io one-wire master to Bus.
type PeriphBus struct {
	bus onewire.Bus
}

// NewPeriphBus wraps a periph.io one-wire bus.
func NewPeriphBus(bus onewire.Bus) *PeriphBus {
	return &PeriphBus{bus: bus}
}

// String returns the underlying bus name.
func (p *PeriphBus) String() string {
	return p.bus.String()
}

// Search runs a full (non alarm-only) ROM search.
func (p *PeriphBus) Search() ([]Address, error) {
	found, err := p.bus.Search(false)
	if err != nil {
		if isNoDevices(err) {
			return nil, nil
		}
		if isShorted(err) {
			return nil, fmt.Errorf("%w: bus shorted: %w", ErrBusFault, err)
		}
		return nil, err
	}

	addrs := make([]Address, len(found))
	for i, a := range found {
		addrs[i] = Address(a)
	}
	return addrs, nil
}

// Convert sends Skip ROM + Convert T and leaves a strong pull-up so
// parasite-powered devices can complete the conversion.
func (p *PeriphBus) Convert() error {
	if err := p.bus.Tx([]byte{cmdSkipROM, cmdConvertT}, nil, onewire.StrongPullup); err != nil {
		return fmt.Errorf("%w: convert: %w", ErrBusFault, err)
	}
	return nil
}

// ReadTemperature selects addr with Match ROM and reads its scratchpad.
func (p *PeriphBus) ReadTemperature(addr Address) (float64, error) {
	w := make([]byte, romCommandOverhead+1)
	w[0] = cmdMatchROM
	binary.LittleEndian.PutUint64(w[1:romCommandOverhead], uint64(addr))
	w[romCommandOverhead] = cmdReadScratchpad

	spad := make([]byte, scratchpadLen)
	if err := p.bus.Tx(w, spad, onewire.WeakPullup); err != nil {
		return 0, fmt.Errorf("%w: read scratchpad %s: %w", ErrBusFault, addr, err)
	}
	return decodeScratchpad(addr, spad)
}

// decodeScratchpad validates a scratchpad and converts its temperature register.
func decodeScratchpad(addr Address, spad []byte) (float64, error) {
	if len(spad) != scratchpadLen {
		return 0, fmt.Errorf("%w: %s: scratchpad length %d", ErrCRCMismatch, addr, len(spad))
	}
	if allOnes(spad) {
		return 0, fmt.Errorf("%w: %s", ErrDeviceAbsent, addr)
	}
	if !onewire.CheckCRC(spad) {
		return 0, fmt.Errorf("%w: %s", ErrCRCMismatch, addr)
	}

	raw := int16(binary.LittleEndian.Uint16(spad[0:2]))
	switch addr.Family() {
	case FamilyDS18S20:
		return float64(raw) / ds18s20Divisor, nil
	case FamilyDS18B20, FamilyDS1822, FamilyDS1825:
		return float64(raw) / ds18b20Divisor, nil
	default:
		return 0, fmt.Errorf("%w: %#02x", ErrUnsupportedFamily, addr.Family())
	}
}

func allOnes(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

func isNoDevices(err error) bool {
	var nd onewire.NoDevicesError
	return errors.As(err, &nd) && nd.NoDevices()
}

func isShorted(err error) bool {
	var sb onewire.ShortedBusError
	return errors.As(err, &sb) && sb.IsShorted()
}
