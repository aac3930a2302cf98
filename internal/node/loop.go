package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

// Deps are the collaborators every Loop needs.
type Deps struct {
	Link      Link
	TimeSync  TimeSync
	Restarter Restarter
	Session   Session
	Publisher Publisher
	Sources   []sensor.Source
	Clock     clock.Clock
}

// Loop is the node's control loop. It is driven from a single goroutine.
type Loop struct {
	opts Options

	link      Link
	timeSync  TimeSync
	restarter Restarter
	session   Session
	publisher Publisher
	sources   []sensor.Source
	clock     clock.Clock

	indicator Indicator
	journal   Journal
	cycles    CycleRecorder
	logger    Logger

	onStarted func(ctx context.Context)
	newID     func() string
	lastPrune time.Time

	// open is the cycle whose journal row has been started but not finished.
	open *Report

	// last is read from other goroutines by diagnostics.
	mu   sync.RWMutex
	last *Report
}

// New creates a Loop. The indicator defaults to NopIndicator; the journal
// and cycle recorder are optional.
func New(deps Deps, opts Options) (*Loop, error) {
	switch {
	case deps.Link == nil:
		return nil, fmt.Errorf("%w: link", ErrMissingDependency)
	case deps.Restarter == nil:
		return nil, fmt.Errorf("%w: restarter", ErrMissingDependency)
	case deps.Session == nil:
		return nil, fmt.Errorf("%w: session", ErrMissingDependency)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingDependency)
	case deps.Clock == nil:
		return nil, fmt.Errorf("%w: clock", ErrMissingDependency)
	}

	return &Loop{
		opts:      opts.withDefaults(),
		link:      deps.Link,
		timeSync:  deps.TimeSync,
		restarter: deps.Restarter,
		session:   deps.Session,
		publisher: deps.Publisher,
		sources:   deps.Sources,
		clock:     deps.Clock,
		indicator: NopIndicator{},
		logger:    noopLogger{},
		newID:     uuid.NewString,
	}, nil
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// SetIndicator sets the status indicator.
func (l *Loop) SetIndicator(ind Indicator) {
	if ind == nil {
		ind = NopIndicator{}
	}
	l.indicator = ind
}

// SetJournal enables the local cycle journal.
func (l *Loop) SetJournal(j Journal) {
	l.journal = j
}

// SetCycleRecorder enables per-cycle summaries.
func (l *Loop) SetCycleRecorder(r CycleRecorder) {
	l.cycles = r
}

// OnStarted registers fn to run once startup has succeeded, before the
// first cycle. It runs on the loop goroutine, so it may call the setters.
func (l *Loop) OnStarted(fn func(ctx context.Context)) {
	l.onStarted = fn
}

// Run performs startup and then cycles until ctx is cancelled, at which
// point the session is disconnected gracefully and nil is returned.
// A startup failure returns a *RestartError after the Restarter was invoked.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.startup(ctx); err != nil {
		return err
	}
	defer l.session.Disconnect()

	for {
		if _, err := l.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			l.logger.Error("cycle failed, cooling down", "error", err, "cooldown", l.opts.Cooldown)
			if err := l.clock.Sleep(ctx, l.opts.Cooldown); err != nil {
				break
			}
			continue
		}

		if err := l.clock.Sleep(ctx, l.opts.CycleInterval); err != nil {
			break
		}
	}

	l.logger.Info("control loop stopped")
	return nil
}

// startup brings the link and the session up. Only the restart path or a
// cancelled ctx produce an error.
func (l *Loop) startup(ctx context.Context) error {
	if err := l.link.Up(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fatal(ctx, "network", fmt.Errorf("%w: %w", ErrNetworkLink, err), l.opts.LinkFailureDelay)
	}

	if l.timeSync != nil {
		if err := l.timeSync.Sync(ctx); err != nil {
			l.logger.Warn("time sync failed", "error", err)
		} else {
			l.logger.Info("clock synchronised")
		}
	}

	if err := l.session.Connect(ctx, l.opts.Topics...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fatal(ctx, "session", fmt.Errorf("%w: %w", ErrSessionStartup, err), l.opts.SessionFailureDelay)
	}

	l.logger.Info("node started", "sources", len(l.sources))
	if l.onStarted != nil {
		l.onStarted(ctx)
	}
	return nil
}

// fatal waits delay and then asks for a restart, exactly once.
func (l *Loop) fatal(ctx context.Context, phase string, cause error, delay time.Duration) error {
	l.logger.Error("startup failed, restarting", "phase", phase, "error", cause, "delay", delay)
	if err := l.clock.Sleep(ctx, delay); err != nil {
		return err
	}

	restartErr := l.restarter.Restart(ctx)
	if restartErr != nil {
		l.logger.Error("restart failed", "phase", phase, "error", restartErr)
	}
	return &RestartError{Phase: phase, Err: cause, RestartErr: restartErr}
}

// safeCycle runs one cycle and converts a panic into ErrUnhandledCycle.
func (l *Loop) safeCycle(ctx context.Context) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.indicator.Off()
			err = fmt.Errorf("%w: panic: %v", ErrUnhandledCycle, r)
			if l.open != nil {
				report = *l.open
				report.Duration = l.clock.Now().Sub(report.StartedAt)
				l.finishJournal(ctx, report, fmt.Sprintf("panic: %v", r))
			}
		}
		l.open = nil
	}()
	return l.RunCycle(ctx)
}

// Report summarises one cycle.
type Report struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration

	// Reconnected is true when a reconnect was attempted; ReconnectErr holds
	// its failure.
	Reconnected  bool
	ReconnectErr error

	Readings     int
	Published    int
	Failed       int
	SourceErrors int
}

// RunCycle runs one cycle: check messages, reconnect once if needed,
// collect every source, publish each reading. Only a cancelled ctx is
// returned as an error; every other failure is logged and counted.
func (l *Loop) RunCycle(ctx context.Context) (Report, error) {
	report := Report{ID: l.newID(), StartedAt: l.clock.Now()}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	log := l.logger

	if n := l.session.CheckMessages(); n > 0 {
		log.Debug("inbound messages dispatched", "count", n)
	}

	if !l.session.IsConnected() {
		report.Reconnected = true
		if err := l.session.Connect(ctx, l.opts.Topics...); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.ReconnectErr = err
			log.Warn("reconnect failed", "cycle", report.ID, "error", err)
		} else {
			log.Info("session reconnected", "cycle", report.ID)
		}
	}

	l.startJournal(ctx, report)
	l.open = &report
	l.publisher.BeginCycle()

	for _, src := range l.sources {
		readings, err := src.Collect(ctx)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err != nil {
			report.SourceErrors++
			log.Warn("sensor collection failed", "cycle", report.ID, "sensor", src.Name(), "readings", len(readings), "error", err)
		}

		for _, r := range readings {
			report.Readings++
			if err := l.publish(ctx, report.ID, r); err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				continue
			}
			report.Published++
		}
	}

	report.Duration = l.clock.Now().Sub(report.StartedAt)
	l.setLast(report)
	l.finishJournal(ctx, report, "")
	l.open = nil
	l.recordCycle(report)
	l.prune(ctx)

	log.Info("cycle complete",
		"cycle", report.ID,
		"readings", report.Readings,
		"published", report.Published,
		"failed", report.Failed,
		"source_errors", report.SourceErrors,
		"duration", report.Duration,
	)
	return report, nil
}

// LastReport returns the most recent completed cycle report.
// It is safe to call from any goroutine.
func (l *Loop) LastReport() (Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.last == nil {
		return Report{}, false
	}
	return *l.last, true
}

func (l *Loop) setLast(r Report) {
	l.mu.Lock()
	l.last = &r
	l.mu.Unlock()
}

// publish sends one reading with the indicator lit and journals the outcome.
func (l *Loop) publish(ctx context.Context, cycleID string, r sensor.Reading) error {
	topic := l.publisher.Topic(r)

	l.indicator.On()
	err := l.publisher.Publish(ctx, r)
	l.indicator.Off()

	entry := journal.Entry{CycleID: cycleID, Reading: r, Topic: topic, Published: err == nil}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.logger.Warn("publish failed", "cycle", cycleID, "id", r.ID, "topic", topic, "error", err)
		}
		entry.Error = err.Error()
	} else {
		l.logger.Info("reading published", "id", r.ID, "value", r.Value, "unit", r.Unit, "topic", topic)
	}

	if l.journal != nil && ctx.Err() == nil {
		if jerr := l.journal.RecordReading(ctx, entry); jerr != nil {
			l.logger.Warn("journal write failed", "cycle", cycleID, "error", jerr)
		}
	}
	return err
}

func (l *Loop) startJournal(ctx context.Context, report Report) {
	if l.journal == nil {
		return
	}
	c := journal.Cycle{
		ID:           report.ID,
		StartedAt:    report.StartedAt,
		SessionState: l.session.State().String(),
	}
	if err := l.journal.StartCycle(ctx, c); err != nil {
		l.logger.Warn("journal write failed", "cycle", report.ID, "error", err)
	}
}

// finishJournal closes the cycle row. A non-empty failure overrides the
// reconnect error as the row's error.
func (l *Loop) finishJournal(ctx context.Context, report Report, failure string) {
	if l.journal == nil {
		return
	}
	c := journal.Cycle{
		ID:           report.ID,
		FinishedAt:   report.StartedAt.Add(report.Duration),
		SessionState: l.session.State().String(),
		Reconnected:  report.Reconnected,
		Readings:     report.Readings,
		Published:    report.Published,
	}
	switch {
	case failure != "":
		c.Error = failure
	case report.ReconnectErr != nil:
		c.Error = report.ReconnectErr.Error()
	}
	if err := l.journal.FinishCycle(ctx, c); err != nil {
		l.logger.Warn("journal write failed", "cycle", report.ID, "error", err)
	}
}

func (l *Loop) recordCycle(report Report) {
	if l.cycles == nil {
		return
	}
	if err := l.cycles.WriteCycle(report.ID, report.Readings, report.Failed, report.Duration); err != nil {
		l.logger.Debug("cycle summary not recorded", "cycle", report.ID, "error", err)
	}
}

// prune enforces journal retention at most once per pruneEvery.
func (l *Loop) prune(ctx context.Context) {
	if l.journal == nil || l.opts.Retention <= 0 {
		return
	}
	now := l.clock.Now()
	if !l.lastPrune.IsZero() && now.Sub(l.lastPrune) < pruneEvery {
		return
	}
	l.lastPrune = now

	n, err := l.journal.Prune(ctx, l.opts.Retention)
	if err != nil {
		l.logger.Warn("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		l.logger.Info("journal pruned", "cycles", n, "retention", l.opts.Retention)
	}
}
