package onewire

import "fmt"

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
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

// Scanner enumerates the devices present on a bus.
type Scanner struct {
	bus Bus
}

// NewScanner creates a Scanner for bus.
func NewScanner(bus Bus) *Scanner {
	return &Scanner{bus: bus}
}

// Scan returns the addresses of every device on the bus, in enumeration order.
//
// An empty bus is not an error: Scan returns an empty slice. Any other
// enumeration failure, a ROM code with a bad CRC, or the same ROM code seen
// twice returns an error wrapping ErrBusScan. Duplicates are never merged.
func (s *Scanner) Scan() ([]Address, error) {
	found, err := s.bus.Search()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBusScan, s.bus, err)
	}

	addrs := make([]Address, 0, len(found))
	seen := make(map[Address]struct{}, len(found))
	for _, a := range found {
		if !a.Valid() {
			return nil, fmt.Errorf("%w: %w: %s", ErrBusScan, ErrInvalidAddress, a)
		}
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrBusScan, ErrDuplicateAddress, a)
		}
		seen[a] = struct{}{}
		addrs = append(addrs, a)
	}

	return addrs, nil
}
