// Package clock provides the time source used for every blocking wait in the
// node: the bus settling delay, publish pacing, the idle duty-cycle sleep and
// the post-error cooldown.
//
// Production code uses Real. Tests use Manual, which records each requested
// wait and advances a virtual clock instead of blocking.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is a source of time and timed waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d. It returns early only when ctx is cancelled,
	// in which case ctx.Err() is returned.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Manual is a virtual clock. Sleep returns immediately after advancing the
// clock by the requested duration and recording it.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// OnSleep, if set, is called after every recorded Sleep. Tests use it to
	// observe ordering or to cancel a context after N waits.
	OnSleep func(d time.Duration)
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep records d and advances the virtual time without blocking.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.now = m.now.Add(d)
	m.sleeps = append(m.sleeps, d)
	hook := m.OnSleep
	m.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

// Sleeps returns a copy of every duration passed to Sleep, in call order.
func (m *Manual) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}

// Total returns the sum of all recorded sleeps.
func (m *Manual) Total() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, d := range m.sleeps {
		total += d
	}
	return total
}
