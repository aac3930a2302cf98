package node

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// events records collaborator calls across fakes, in order.
type events []string

func (e *events) add(name string) {
	if e != nil {
		*e = append(*e, name)
	}
}

type fakeLink struct {
	err   error
	calls int
}

func (f *fakeLink) Up(context.Context) error {
	f.calls++
	return f.err
}

type fakeTimeSync struct {
	err   error
	calls int
}

func (f *fakeTimeSync) Sync(context.Context) error {
	f.calls++
	return f.err
}

type fakeRestarter struct {
	err   error
	calls int
}

func (f *fakeRestarter) Restart(context.Context) error {
	f.calls++
	return f.err
}

type fakeSession struct {
	log *events

	connected bool

	// connectErrs are returned by successive Connect calls; nil once exhausted.
	connectErrs []error
	connects    int
	topics      [][]string

	// dropOnCheck makes the next CheckMessages observe a transport fault.
	dropOnCheck bool
	checks      int

	disconnects int
}

func (f *fakeSession) Connect(_ context.Context, topics ...string) error {
	f.log.add("connect")
	f.connects++
	f.topics = append(f.topics, topics)

	var err error
	if len(f.connectErrs) > 0 {
		err, f.connectErrs = f.connectErrs[0], f.connectErrs[1:]
	}
	f.connected = err == nil
	return err
}

func (f *fakeSession) CheckMessages() int {
	f.log.add("check")
	f.checks++
	if f.dropOnCheck {
		f.dropOnCheck = false
		f.connected = false
	}
	return 0
}

func (f *fakeSession) IsConnected() bool { return f.connected }

func (f *fakeSession) State() mqtt.State {
	if f.connected {
		return mqtt.StateConnected
	}
	return mqtt.StateDisconnected
}

func (f *fakeSession) Disconnect() {
	f.log.add("disconnect")
	f.disconnects++
	f.connected = false
}

type fakePublisher struct {
	log *events

	// fail maps reading IDs to the error their publish returns.
	fail map[string]error

	cycles    int
	published []sensor.Reading
}

func (f *fakePublisher) BeginCycle() { f.cycles++ }

func (f *fakePublisher) Topic(r sensor.Reading) string {
	return mqtt.Topics{}.Sensor(r.Location, r.SensorKind)
}

func (f *fakePublisher) Publish(_ context.Context, r sensor.Reading) error {
	f.log.add("publish:" + r.ID)
	f.published = append(f.published, r)
	return f.fail[r.ID]
}

type fakeSource struct {
	log *events

	name     string
	readings []sensor.Reading
	err      error

	// panics makes the first n Collect calls panic.
	panics int
	calls  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Collect(context.Context) ([]sensor.Reading, error) {
	f.log.add("collect:" + f.name)
	f.calls++
	if f.calls <= f.panics {
		panic("i2c read on closed bus")
	}
	return f.readings, f.err
}

type fakeIndicator struct {
	log     *events
	on, off int
}

func (f *fakeIndicator) On() {
	f.log.add("led:on")
	f.on++
}

func (f *fakeIndicator) Off() {
	f.log.add("led:off")
	f.off++
}

type fakeJournal struct {
	started  []journal.Cycle
	finished []journal.Cycle
	entries  []journal.Entry
	prunes   []time.Duration
	err      error
}

func (f *fakeJournal) StartCycle(_ context.Context, c journal.Cycle) error {
	f.started = append(f.started, c)
	return f.err
}

func (f *fakeJournal) RecordReading(_ context.Context, e journal.Entry) error {
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakeJournal) FinishCycle(_ context.Context, c journal.Cycle) error {
	f.finished = append(f.finished, c)
	return f.err
}

func (f *fakeJournal) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	f.prunes = append(f.prunes, olderThan)
	return 0, f.err
}

type fakeCycleRecorder struct {
	ids      []string
	failures []int
}

func (f *fakeCycleRecorder) WriteCycle(cycleID string, _, failures int, _ time.Duration) error {
	f.ids = append(f.ids, cycleID)
	f.failures = append(f.failures, failures)
	return errors.New("influx unreachable")
}

func reading(id string, value float64) sensor.Reading {
	return sensor.Reading{SensorKind: "DS18B20", Location: "Outdoor", ID: id, Value: value, Unit: "C"}
}

// harness bundles a Loop with its fakes.
type harness struct {
	log       events
	link      *fakeLink
	timeSync  *fakeTimeSync
	restarter *fakeRestarter
	session   *fakeSession
	publisher *fakePublisher
	clock     *clock.Manual
	loop      *Loop
}

var testOptions = Options{
	CycleInterval:       900 * time.Second,
	Cooldown:            10 * time.Second,
	LinkFailureDelay:    10 * time.Second,
	SessionFailureDelay: 30 * time.Second,
	Topics:              []string{"cmd/node-001/#"},
}

func newHarness(sources ...*fakeSource) *harness {
	h := &harness{
		link:      &fakeLink{},
		timeSync:  &fakeTimeSync{},
		restarter: &fakeRestarter{},
		clock:     clock.NewManual(testStart),
	}
	h.session = &fakeSession{log: &h.log}
	h.publisher = &fakePublisher{log: &h.log}

	srcs := make([]sensor.Source, 0, len(sources))
	for _, s := range sources {
		s.log = &h.log
		srcs = append(srcs, s)
	}

	loop, err := New(Deps{
		Link:      h.link,
		TimeSync:  h.timeSync,
		Restarter: h.restarter,
		Session:   h.session,
		Publisher: h.publisher,
		Sources:   srcs,
		Clock:     h.clock,
	}, testOptions)
	if err != nil {
		panic(err)
	}

	n := 0
	loop.newID = func() string {
		n++
		return "cycle-" + string(rune('0'+n))
	}
	h.loop = loop
	return h
}
