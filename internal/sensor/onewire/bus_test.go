package onewire

import (
	"encoding/binary"
	"errors"
	"testing"

	"periph.io/x/periph/conn/onewire"
)

type recordedTx struct {
	w     []byte
	power onewire.Pullup
}

// fakeMaster emulates a one-wire master with DS18x20 devices behind it.
type fakeMaster struct {
	found     []onewire.Address
	searchErr error
	txErr     error
	spads     map[onewire.Address][]byte
	txs       []recordedTx
}

func (f *fakeMaster) String() string { return "ds2483-test" }
func (f *fakeMaster) Halt() error    { return nil }

func (f *fakeMaster) Search(alarmOnly bool) ([]onewire.Address, error) {
	return f.found, f.searchErr
}

func (f *fakeMaster) Tx(w, r []byte, power onewire.Pullup) error {
	f.txs = append(f.txs, recordedTx{w: append([]byte(nil), w...), power: power})
	if f.txErr != nil {
		return f.txErr
	}
	if len(w) == 10 && w[0] == cmdMatchROM && w[9] == cmdReadScratchpad {
		addr := onewire.Address(binary.LittleEndian.Uint64(w[1:9]))
		spad, ok := f.spads[addr]
		if !ok {
			for i := range r {
				r[i] = 0xFF
			}
			return nil
		}
		copy(r, spad)
	}
	return nil
}

type noDevicesErr struct{}

func (noDevicesErr) Error() string   { return "onewire: no devices" }
func (noDevicesErr) NoDevices() bool { return true }

type shortedErr struct{}

func (shortedErr) Error() string   { return "onewire: bus shorted" }
func (shortedErr) IsShorted() bool { return true }

func TestPeriphBus_Search(t *testing.T) {
	a := makeAddress(FamilyDS18B20, 1)
	b := makeAddress(FamilyDS18S20, 2)
	master := &fakeMaster{found: []onewire.Address{onewire.Address(a), onewire.Address(b)}}

	addrs, err := NewPeriphBus(master).Search()
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(addrs) != 2 || addrs[0] != a || addrs[1] != b {
		t.Errorf("Search() = %v, want [%s %s]", addrs, a, b)
	}
}

func TestPeriphBus_SearchErrors(t *testing.T) {
	t.Run("no devices is empty", func(t *testing.T) {
		addrs, err := NewPeriphBus(&fakeMaster{searchErr: noDevicesErr{}}).Search()
		if err != nil || len(addrs) != 0 {
			t.Errorf("Search() = %v, %v; want empty, nil", addrs, err)
		}
	})

	t.Run("shorted bus is a fault", func(t *testing.T) {
		_, err := NewPeriphBus(&fakeMaster{searchErr: shortedErr{}}).Search()
		if !errors.Is(err, ErrBusFault) {
			t.Errorf("Search() error = %v, want ErrBusFault", err)
		}
	})

	t.Run("other errors propagate", func(t *testing.T) {
		cause := errors.New("search: discrepancy")
		_, err := NewPeriphBus(&fakeMaster{searchErr: cause}).Search()
		if !errors.Is(err, cause) {
			t.Errorf("Search() error = %v, want %v", err, cause)
		}
	})
}

func TestPeriphBus_Convert(t *testing.T) {
	master := &fakeMaster{}
	if err := NewPeriphBus(master).Convert(); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if len(master.txs) != 1 {
		t.Fatalf("Convert() issued %d transactions, want 1", len(master.txs))
	}
	tx := master.txs[0]
	if len(tx.w) != 2 || tx.w[0] != cmdSkipROM || tx.w[1] != cmdConvertT {
		t.Errorf("Convert() wrote % x, want cc 44", tx.w)
	}
	if tx.power != onewire.StrongPullup {
		t.Error("Convert() should leave a strong pull-up for parasite power")
	}

	master.txErr = errors.New("i2c: nack")
	if err := NewPeriphBus(master).Convert(); !errors.Is(err, ErrBusFault) {
		t.Errorf("Convert() error = %v, want ErrBusFault", err)
	}
}

func TestPeriphBus_ReadTemperature(t *testing.T) {
	b20 := makeAddress(FamilyDS18B20, 1)
	s20 := makeAddress(FamilyDS18S20, 2)
	cold := makeAddress(FamilyDS18B20, 3)
	fresh := makeAddress(FamilyDS18B20, 4)

	master := &fakeMaster{spads: map[onewire.Address][]byte{
		onewire.Address(b20):   makeScratchpad(0x0157), // 343/16
		onewire.Address(s20):   makeScratchpad(0x0032), // 50/2
		onewire.Address(cold):  makeScratchpad(-162),   // 0xFF5E
		onewire.Address(fresh): makeScratchpad(0x0550), // power-on
	}}
	bus := NewPeriphBus(master)

	tests := []struct {
		name string
		addr Address
		want float64
	}{
		{name: "DS18B20", addr: b20, want: 21.4375},
		{name: "DS18S20", addr: s20, want: 25.0},
		{name: "negative", addr: cold, want: -10.125},
		{name: "power-on value", addr: fresh, want: 85.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bus.ReadTemperature(tt.addr)
			if err != nil {
				t.Fatalf("ReadTemperature() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadTemperature() = %v, want %v", got, tt.want)
			}
		})
	}

	last := master.txs[len(master.txs)-1]
	if last.w[0] != cmdMatchROM || last.w[9] != cmdReadScratchpad {
		t.Errorf("ReadTemperature() wrote % x, want match ROM + read scratchpad", last.w)
	}
	if Address(binary.LittleEndian.Uint64(last.w[1:9])) != fresh {
		t.Error("ReadTemperature() selected the wrong ROM code")
	}
}

func TestPeriphBus_ReadTemperatureErrors(t *testing.T) {
	good := makeAddress(FamilyDS18B20, 1)
	absent := makeAddress(FamilyDS18B20, 2)
	corrupt := makeAddress(FamilyDS18B20, 3)
	other := makeAddress(0x01, 4)

	badCRC := makeScratchpad(0x0157)
	badCRC[8] ^= 0xFF

	master := &fakeMaster{spads: map[onewire.Address][]byte{
		onewire.Address(good):    makeScratchpad(0x0157),
		onewire.Address(corrupt): badCRC,
		onewire.Address(other):   makeScratchpad(0x0157),
	}}
	bus := NewPeriphBus(master)

	tests := []struct {
		name    string
		addr    Address
		wantErr error
	}{
		{name: "absent device", addr: absent, wantErr: ErrDeviceAbsent},
		{name: "CRC mismatch", addr: corrupt, wantErr: ErrCRCMismatch},
		{name: "unsupported family", addr: other, wantErr: ErrUnsupportedFamily},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bus.ReadTemperature(tt.addr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadTemperature() error = %v, want %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrBusFault) {
				t.Error("device-level errors must not be reported as bus faults")
			}
		})
	}

	master.txErr = errors.New("i2c: arbitration lost")
	if _, err := bus.ReadTemperature(good); !errors.Is(err, ErrBusFault) {
		t.Errorf("ReadTemperature() error = %v, want ErrBusFault", err)
	}
}
