package onewire

import (
	"encoding/binary"
	"fmt"
)

// crc8 is the Dallas/Maxim CRC-8 (x^8 + x^5 + x^4 + 1, reflected).
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			mix := (crc ^ b) & 1
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}

// makeAddress builds a ROM code with a valid CRC.
func makeAddress(family byte, serial uint64) Address {
	b := make([]byte, 8)
	b[0] = family
	for i := 1; i < 7; i++ {
		b[i] = byte(serial >> (8 * (i - 1)))
	}
	b[7] = crc8(b[:7])
	return Address(binary.LittleEndian.Uint64(b))
}

// makeScratchpad builds a DS18B20 scratchpad holding raw with a valid CRC.
func makeScratchpad(raw int16) []byte {
	spad := []byte{0, 0, 0x4B, 0x46, 0x7F, 0xFF, 0x0C, 0x10, 0}
	binary.LittleEndian.PutUint16(spad[0:2], uint16(raw))
	spad[8] = crc8(spad[:8])
	return spad
}

// fakeBus is an in-memory Bus that logs every operation.
type fakeBus struct {
	addrs      []Address
	searchErr  error
	convertErr error
	temps      map[Address]float64
	readErrs   map[Address]error
	events     []string
}

func newFakeBus(addrs ...Address) *fakeBus {
	return &fakeBus{
		addrs:    addrs,
		temps:    make(map[Address]float64),
		readErrs: make(map[Address]error),
	}
}

func (f *fakeBus) String() string { return "fake-bus" }

func (f *fakeBus) Search() ([]Address, error) {
	f.events = append(f.events, "search")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.addrs, nil
}

func (f *fakeBus) Convert() error {
	f.events = append(f.events, "convert")
	return f.convertErr
}

func (f *fakeBus) ReadTemperature(addr Address) (float64, error) {
	f.events = append(f.events, "read "+addr.Hex())
	if err, ok := f.readErrs[addr]; ok {
		return 0, err
	}
	v, ok := f.temps[addr]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDeviceAbsent, addr)
	}
	return v, nil
}

func (f *fakeBus) count(prefix string) int {
	n := 0
	for _, e := range f.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// recordingLogger keeps the key/value pairs of every entry.
type recordingLogger struct {
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

func (r *recordingLogger) add(level, msg string, args []any) {
	r.entries = append(r.entries, logEntry{level: level, msg: msg, args: args})
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.add("debug", msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.add("info", msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.add("warn", msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.add("error", msg, args) }

// field returns the value logged under key in the first entry with msg.
func (r *recordingLogger) field(msg, key string) (any, bool) {
	for _, e := range r.entries {
		if e.msg != msg {
			continue
		}
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i] == key {
				return e.args[i+1], true
			}
		}
	}
	return nil, false
}
