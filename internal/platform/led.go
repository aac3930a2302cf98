package platform

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// LED drives the status indicator on one GPIO line. It is lit while the node
// transmits.
type LED struct {
	pin    gpio.PinOut
	logger Logger
}

// OpenLED looks up the GPIO by name ("GPIO17", "LED0"). host.Init must have
// run first.
func OpenLED(name string) (*LED, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	led := NewLED(pin)
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configuring %s as output: %w", name, err)
	}
	return led, nil
}

// NewLED wraps an already configured output pin.
func NewLED(pin gpio.PinOut) *LED {
	return &LED{pin: pin, logger: noopLogger{}}
}

// SetLogger sets the logger for the LED.
func (l *LED) SetLogger(logger Logger) {
	l.logger = logger
}

// On lights the LED. Failures only log: the indicator is cosmetic.
func (l *LED) On() {
	if err := l.pin.Out(gpio.High); err != nil {
		l.logger.Debug("indicator on failed", "error", err)
	}
}

// Off turns the LED off.
func (l *LED) Off() {
	if err := l.pin.Out(gpio.Low); err != nil {
		l.logger.Debug("indicator off failed", "error", err)
	}
}
