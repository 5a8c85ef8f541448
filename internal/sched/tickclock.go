// internal/sched/tickclock.go

package sched

import (
	"context"
	"sync/atomic"
	"time"
)

// TickClock paces simulated ticks against wall time for live runs. The
// simulation itself never reads the wall clock.
type TickClock struct {
	interval time.Duration
	count    atomic.Int64
}

// NewTickClock creates a clock emitting one tick per interval.
func NewTickClock(interval time.Duration) *TickClock {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &TickClock{interval: interval}
}

// Drive calls step once per interval until ctx is done or limit ticks were
// driven; limit <= 0 means no limit.
func (c *TickClock) Drive(ctx context.Context, limit int, step func()) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for n := 0; limit <= 0 || n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.count.Add(1)
			step()
		}
	}
	return nil
}

// Count returns the number of ticks driven so far.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
