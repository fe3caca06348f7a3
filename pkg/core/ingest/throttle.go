package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle enforces a minimum spacing between consecutive requests.
//
// The spacing is measured from the completion of the previous request. Do holds
// the lock for the whole request, so at most one request is in flight per Throttle.
type Throttle struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	interval time.Duration
	last     time.Time // completion of the previous request; zero before the first
}

// NewThrottle creates a throttle. A nil clock means the real clock.
func NewThrottle(interval time.Duration, clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, interval: interval}
}

// Do waits for the spacing floor, runs fn and records its completion time.
func (t *Throttle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.interval - t.clock.Since(t.last); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.clock.After(wait):
			}
		}
	}

	defer func() { t.last = t.clock.Now() }()
	return fn(ctx)
}

// Interval returns the configured spacing floor.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
