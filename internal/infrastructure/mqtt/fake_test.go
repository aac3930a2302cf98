package mqtt

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a pahomqtt.Token that is either complete or never completes.
type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient is an in-memory pahomqtt.Client.
type fakeClient struct {
	mu sync.Mutex

	opts *pahomqtt.ClientOptions

	connectToken pahomqtt.Token
	publishErr   error
	publishFn    func(topic string) pahomqtt.Token
	subscribeErr error

	open         bool
	connected    bool
	publishes    []publishCall
	subscribes   []string
	callback     pahomqtt.MessageHandler
	disconnected int
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectToken != nil {
		return c.connectToken
	}
	c.open = true
	c.connected = true
	return doneToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.connected = false
	c.disconnected++
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.publishes = append(c.publishes, publishCall{topic: topic, qos: qos, retained: retained, payload: body})

	if c.publishFn != nil {
		return c.publishFn(topic)
	}
	return doneToken(c.publishErr)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes = append(c.subscribes, topic)
	c.callback = callback
	return doneToken(c.subscribeErr)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	return doneToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(c.opts)
}

// deliver simulates an inbound message on paho's router goroutine.
func (c *fakeClient) deliver(topic, payload string) {
	handler := c.opts.DefaultPublishHandler
	c.mu.Lock()
	if c.callback != nil {
		handler = c.callback
	}
	c.mu.Unlock()
	handler(c, &fakeMessage{topic: topic, payload: []byte(payload)})
}

// loseConnection simulates paho's connection-lost callback.
func (c *fakeClient) loseConnection(err error) {
	c.mu.Lock()
	c.open = false
	c.connected = false
	c.mu.Unlock()
	c.opts.OnConnectionLost(c, err)
}

func (c *fakeClient) published() []publishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]publishCall, len(c.publishes))
	copy(out, c.publishes)
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker hands out fake clients and remembers them.
type fakeBroker struct {
	clients []*fakeClient
	prepare func(c *fakeClient)
}

func (b *fakeBroker) factory(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	c := &fakeClient{opts: opts}
	if b.prepare != nil {
		b.prepare(c)
	}
	b.clients = append(b.clients, c)
	return c
}

func (b *fakeBroker) last() *fakeClient {
	if len(b.clients) == 0 {
		return nil
	}
	return b.clients[len(b.clients)-1]
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		Host:      "broker.local",
		Port:      1883,
		ClientID:  "node-001",
		KeepAlive: 60 * time.Second,
		QoS:       1,
	}
}

// newTestSession returns a session wired to a fake broker.
func newTestSession() (*Session, *fakeBroker) {
	b := &fakeBroker{}
	s := NewSession(testSessionConfig())
	s.newClient = b.factory
	return s, b
}

// recordingLogger captures log calls by level.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}
