package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

// Session is the publishing side of the MQTT session.
type Session interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Archive stores readings next to the live publish (e.g. InfluxDB).
type Archive interface {
	WriteReading(r sensor.Reading) error
}

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

// Options configures a Publisher.
type Options struct {
	// Topic is the static topic. Used when Routing is config.RoutingStatic.
	Topic string

	// Routing is config.RoutingStatic or config.RoutingPerKind.
	Routing string

	// Retain sets the retained flag on every publish.
	Retain bool

	// Pacing separates successive publishes within one cycle.
	Pacing time.Duration

	// DefaultLocation is used for per-kind routing when a reading has none.
	DefaultLocation string
}

// OptionsFromConfig builds Options from the telemetry and node sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Topic:           cfg.Telemetry.Topic,
		Routing:         cfg.Telemetry.Routing,
		Retain:          cfg.Telemetry.Retain,
		Pacing:          cfg.GetPacing(),
		DefaultLocation: cfg.Node.Location,
	}
}

// Publisher maps readings to topics and publishes them through a Session.
// It is used from the control goroutine only.
type Publisher struct {
	session Session
	clock   clock.Clock
	opts    Options
	archive Archive
	logger  Logger

	// attempts counts publishes since the last BeginCycle.
	attempts int
}

// NewPublisher creates a Publisher. The routing mode is fixed here.
func NewPublisher(session Session, clk clock.Clock, opts Options) (*Publisher, error) {
	switch opts.Routing {
	case config.RoutingStatic, "":
		opts.Routing = config.RoutingStatic
		if err := mqtt.ValidatePublishTopic(opts.Topic); err != nil {
			return nil, fmt.Errorf("telemetry: static topic: %w", err)
		}
	case config.RoutingPerKind:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRouting, opts.Routing)
	}
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}

	return &Publisher{
		session: session,
		clock:   clk,
		opts:    opts,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetArchive attaches an optional archive sink. nil detaches it.
func (p *Publisher) SetArchive(a Archive) {
	p.archive = a
}

// BeginCycle resets pacing so the first publish of a cycle is not delayed.
func (p *Publisher) BeginCycle() {
	p.attempts = 0
}

// Topic resolves the topic a reading is published to.
func (p *Publisher) Topic(r sensor.Reading) string {
	if p.opts.Routing != config.RoutingPerKind {
		return p.opts.Topic
	}
	location := r.Location
	if location == "" {
		location = p.opts.DefaultLocation
	}
	return mqtt.Topics{}.Sensor(location, r.SensorKind)
}

// Encode returns the wire payload for r.
func Encode(r sensor.Reading) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, r.ID, err)
	}
	return b, nil
}

// Publish sends one reading.
//
// Every publish after the first in a cycle waits for the pacing delay first.
// The session error (mqtt.ErrNotConnected, mqtt.ErrPublishFailed) is returned
// unchanged so callers can log it and move on. The archive, when set, sees
// the reading regardless of the publish outcome.
func (p *Publisher) Publish(ctx context.Context, r sensor.Reading) error {
	if p.attempts > 0 && p.opts.Pacing > 0 {
		if err := p.clock.Sleep(ctx, p.opts.Pacing); err != nil {
			return err
		}
	}
	p.attempts++

	payload, err := Encode(r)
	if err != nil {
		return err
	}

	topic := p.Topic(r)
	pubErr := p.session.Publish(topic, payload, p.opts.Retain)
	if pubErr == nil {
		p.logger.Debug("reading published", "topic", topic, "id", r.ID, "value", r.Value)
	}

	if p.archive != nil {
		if err := p.archive.WriteReading(r); err != nil {
			p.logger.Warn("archiving reading failed", "id", r.ID, "error", err)
		}
	}

	return pubErr
}
