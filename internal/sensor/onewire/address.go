package onewire

import (
	"encoding/binary"
	"encoding/hex"

	"periph.io/x/periph/conn/onewire"
)

// Device family codes of the supported temperature sensors.
const (
	FamilyDS18S20 byte = 0x10
	FamilyDS1822  byte = 0x22
	FamilyDS18B20 byte = 0x28
	FamilyDS1825  byte = 0x3B
)

// Address is the 64-bit ROM code of a device on the bus.
//
// The family code is the least significant byte and the ROM CRC the most
// significant, matching the order bytes are shifted out on the wire.
type Address uint64

// Family returns the device family code.
func (a Address) Family() byte {
	return byte(a)
}

// Bytes returns the ROM code in wire order (family code first).
func (a Address) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(a))
	return b
}

// Hex returns the ROM code as 16 lowercase hex digits in wire order,
// e.g. "28ff4a1b02000012".
func (a Address) Hex() string {
	return hex.EncodeToString(a.Bytes())
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// Valid reports whether the ROM CRC matches the first seven bytes.
func (a Address) Valid() bool {
	return onewire.CheckCRC(a.Bytes())
}

// IsTemperatureSensor reports whether the family code is a DS18x20 variant.
func (a Address) IsTemperatureSensor() bool {
	switch a.Family() {
	case FamilyDS18S20, FamilyDS1822, FamilyDS18B20, FamilyDS1825:
		return true
	default:
		return false
	}
}
