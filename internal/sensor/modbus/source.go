package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	mb "github.com/goburrow/modbus"

	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

const (
	registerHolding = "holding"
	registerInput   = "input"
)

// Logger is the logging surface used by this package.
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

// Point maps one 16-bit register to a reading.
type Point struct {
	Name     string
	Register string // holding | input
	Address  uint16
	Signed   bool
	Scale    float64
	Offset   float64
	Unit     string
}

// SourceConfig describes the readings a Source produces.
type SourceConfig struct {
	SensorKind string
	Location   string
	IDPrefix   string
	Unit       string // used when a point has no unit
	Points     []Point
}

// Source is a sensor.Source over one Modbus slave.
type Source struct {
	name   string
	dial   Dialer
	cfg    SourceConfig
	logger Logger
}

// NewSource creates a Source that opens a connection with dial each cycle.
func NewSource(name string, dial Dialer, cfg SourceConfig) *Source {
	return &Source{
		name:   name,
		dial:   dial,
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (s *Source) SetLogger(logger Logger) {
	s.logger = logger
}

// Name returns the configured sensor name.
func (s *Source) Name() string {
	return s.name
}

// Collect reads every configured point in order.
//
// A Modbus exception on one point skips that point. A transport failure
// stops the cycle and returns what was read so far with ErrTransport.
func (s *Source) Collect(ctx context.Context) ([]sensor.Reading, error) {
	if len(s.cfg.Points) == 0 {
		return nil, nil
	}

	t, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			s.logger.Debug("closing modbus transport", "sensor", s.name, "error", cerr)
		}
	}()

	readings := make([]sensor.Reading, 0, len(s.cfg.Points))
	for _, p := range s.cfg.Points {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		value, err := readPoint(t, p)
		if err != nil {
			var exc *mb.ModbusError
			if errors.As(err, &exc) || errors.Is(err, ErrUnsupportedRegister) || errors.Is(err, ErrShortResponse) {
				s.logger.Warn("skipping modbus point", "sensor", s.name, "point", p.Name, "error", err)
				continue
			}
			return readings, fmt.Errorf("%w: point %s@%d: %w", ErrTransport, p.Name, p.Address, err)
		}

		unit := p.Unit
		if unit == "" {
			unit = s.cfg.Unit
		}
		readings = append(readings, sensor.Reading{
			SensorKind: s.cfg.SensorKind,
			Location:   s.cfg.Location,
			ID:         s.cfg.IDPrefix + "_" + p.Name,
			Value:      sensor.Round2(value),
			Unit:       unit,
		})
	}

	return readings, nil
}

// readPoint reads a single register and applies sign, scale and offset.
func readPoint(t Transport, p Point) (float64, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(p.Register) {
	case registerHolding, "":
		data, err = t.ReadHoldingRegisters(p.Address, 1)
	case registerInput:
		data, err = t.ReadInputRegisters(p.Address, 1)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRegister, p.Register)
	}
	if err != nil {
		return 0, err
	}
	return decodeRegister(data, p)
}

func decodeRegister(data []byte, p Point) (float64, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: %d bytes for %s", ErrShortResponse, len(data), p.Name)
	}

	u := binary.BigEndian.Uint16(data[:2])
	raw := float64(u)
	if p.Signed {
		raw = float64(int16(u))
	}

	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return raw*scale + p.Offset, nil
}

var _ sensor.Source = (*Source)(nil)
