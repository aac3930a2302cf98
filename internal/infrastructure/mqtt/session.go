package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// inboxSize bounds messages buffered between two CheckMessages calls.
const inboxSize = 64

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Logger interface for optional logging support.
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

// ClientFactory creates a paho client from options. Tests substitute fakes.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Message is an inbound MQTT message buffered for dispatch.
type Message struct {
	Topic   string
	Payload []byte
}

// fault is a connection-lost notification tagged with the connection it
// belongs to, so a late callback from a replaced client is ignored.
type fault struct {
	generation uint64
	err        error
}

// Session is the node's single MQTT session.
//
// Thread Safety:
//   - Connect, Publish, CheckMessages, Subscribe and Disconnect are meant to be
//     called from one control goroutine.
//   - paho's goroutines only enqueue into inbox and faults; all subscriber
//     dispatch happens inside CheckMessages on the caller's goroutine.
//   - State and IsConnected are safe from any goroutine.
type Session struct {
	cfg       SessionConfig
	newClient ClientFactory
	client    pahomqtt.Client

	state      atomic.Int32
	generation atomic.Uint64

	// topics tracks subscription filters in the order they were added.
	topics   []string
	topicSet map[string]struct{}

	subMu       sync.Mutex
	subscribers []subscriber

	inbox   chan Message
	faults  chan fault
	dropped atomic.Uint64

	logger Logger
}

// NewSession creates a Disconnected session. No network activity happens
// until Connect.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:       cfg,
		newClient: pahomqtt.NewClient,
		topicSet:  make(map[string]struct{}),
		inbox:     make(chan Message, inboxSize),
		faults:    make(chan fault, 1),
		logger:    noopLogger{},
	}
}

// SetLogger sets a logger for connection events and subscriber failures.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// Config returns the session's connection description.
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether the session is in the Connected state.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Dropped returns how many inbound messages were discarded because the
// inbox was full.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Debug("mqtt session state changed", "from", prev.String(), "to", st.String())
	}
}

// Connect brings the session to Connected.
//
// The sequence is: register the will on status/<clientId>, handshake, publish
// "online" retained on the same topic, subscribe topics plus every filter
// already tracked, then mark Connected. Any failure leaves the session
// Disconnected and returns an error wrapping ErrHandshakeFailed.
//
// Calling Connect on a live Connected session is a no-op. A session that is
// marked Connected but whose transport has closed is reconnected from scratch.
func (s *Session) Connect(ctx context.Context, topics ...string) error {
	for _, t := range topics {
		if err := ValidateFilter(t); err != nil {
			return err
		}
		s.track(t)
	}

	if s.State() == StateConnected {
		if s.client != nil && s.client.IsConnectionOpen() {
			return nil
		}
		s.logger.Warn("mqtt session marked connected but transport is closed, reconnecting")
		s.closeClient(0)
	}

	s.setState(StateConnecting)
	gen := s.generation.Add(1)

	opts := buildClientOptions(s.cfg)
	configureWill(opts, s.cfg.ClientID, s.cfg.QoS)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.enqueueFault(gen, err)
	})
	opts.SetDefaultPublishHandler(s.enqueueMessage)

	client := s.newClient(opts)
	if err := waitToken(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		if client.IsConnected() {
			client.Disconnect(0)
		}
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: %s: %w", ErrHandshakeFailed, s.cfg.BrokerURL(), err)
	}
	s.client = client

	statusTopic := Topics{}.Status(s.cfg.ClientID)
	if err := waitToken(ctx, client.Publish(statusTopic, s.cfg.QoS, true, StatusOnline), defaultPublishTimeout); err != nil {
		s.abortHandshake()
		return fmt.Errorf("%w: online status: %w", ErrHandshakeFailed, err)
	}

	for _, t := range s.topics {
		if err := waitToken(ctx, client.Subscribe(t, s.cfg.QoS, s.enqueueMessage), defaultPublishTimeout); err != nil {
			s.abortHandshake()
			return fmt.Errorf("%w: subscribe %s: %w", ErrHandshakeFailed, t, err)
		}
	}

	s.setState(StateConnected)
	s.logger.Info("mqtt session connected",
		"broker", s.cfg.BrokerURL(),
		"client_id", s.cfg.ClientID,
		"subscriptions", len(s.topics),
	)
	return nil
}

// Disconnect ends the session gracefully.
//
// When the transport is open it publishes "offline" retained on the status
// topic before disconnecting. Errors are logged, never returned or retried.
// The session is always Disconnected afterwards.
func (s *Session) Disconnect() {
	if s.client != nil && s.client.IsConnectionOpen() {
		token := s.client.Publish(Topics{}.Status(s.cfg.ClientID), s.cfg.QoS, true, StatusOffline)
		if !token.WaitTimeout(defaultPublishTimeout) {
			s.logger.Warn("offline status publish timed out")
		} else if err := token.Error(); err != nil {
			s.logger.Warn("offline status publish failed", "error", err)
		}
	}
	s.closeClient(defaultDisconnectQuiesce)
	s.setState(StateDisconnected)
}

// CheckMessages processes everything the transport buffered since the last
// call and returns without blocking.
//
// A connection-lost notification, or a transport that reports itself closed,
// moves the session to Disconnected. Buffered messages are dispatched to every
// registered subscriber in registration order. It returns the number of
// messages dispatched.
func (s *Session) CheckMessages() int {
	s.drainFaults()

	if s.State() == StateConnected && (s.client == nil || !s.client.IsConnectionOpen()) {
		s.markLost(fmt.Errorf("%w: transport closed", ErrNotConnected))
	}

	n := 0
	for {
		select {
		case msg := <-s.inbox:
			s.dispatch(msg)
			n++
		default:
			return n
		}
	}
}

func (s *Session) drainFaults() {
	for {
		select {
		case f := <-s.faults:
			if f.generation != s.generation.Load() {
				continue
			}
			if s.State() != StateDisconnected {
				s.markLost(f.err)
			}
		default:
			return
		}
	}
}

// markLost records a transport fault.
func (s *Session) markLost(err error) {
	s.logger.Warn("mqtt connection lost", "error", err)
	s.closeClient(0)
	s.setState(StateDisconnected)
}

// abortHandshake tears down a client that connected but failed setup.
func (s *Session) abortHandshake() {
	s.closeClient(0)
	s.setState(StateDisconnected)
}

func (s *Session) closeClient(quiesce uint) {
	if s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Disconnect(quiesce)
	}
	s.client = nil
}

// enqueueFault runs on a paho goroutine.
func (s *Session) enqueueFault(gen uint64, err error) {
	select {
	case s.faults <- fault{generation: gen, err: err}:
	default:
		// A fault is already pending; one is enough to drop the session.
	}
}

// enqueueMessage runs on a paho goroutine.
func (s *Session) enqueueMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	m := Message{Topic: msg.Topic(), Payload: msg.Payload()}
	select {
	case s.inbox <- m:
	default:
		s.dropped.Add(1)
	}
}

// waitToken waits for a paho token, the context, or the timeout.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
