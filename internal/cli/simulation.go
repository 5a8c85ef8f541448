package cli

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"rtsched/internal/config"
	"rtsched/internal/job"
	"rtsched/internal/sched"
)

// simulation owns the paced goroutine driving one scheduler for serve.
type simulation struct {
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSimulation(logger *slog.Logger) *simulation {
	return &simulation{logger: logger.With("component", "simulation")}
}

// start stops any running simulation and drives s from cfg: the script
// first, then free-running ticks until ctx is done.
func (sim *simulation) start(ctx context.Context, s *sched.Scheduler, cfg *config.Config) {
	sim.stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sim.mu.Lock()
	sim.cancel, sim.done = cancel, done
	sim.mu.Unlock()

	clock := sched.NewTickClock(time.Duration(cfg.Scheduler.TickMS) * time.Millisecond)
	steps := cfg.Steps()

	go func() {
		defer close(done)
		sim.logger.Info("simulation started", "policy", s.Policy(), "steps", len(steps),
			"tick_ms", cfg.Scheduler.TickMS)

		if err := job.PlayPaced(ctx, s, steps, clock); err != nil {
			if !errors.Is(err, context.Canceled) {
				sim.logger.Error("script failed", "error", err)
			}
			return
		}
		sim.logger.Info("script finished, free running", "tick", s.Now())
		if err := clock.Drive(ctx, 0, s.Step); err != nil && !errors.Is(err, context.Canceled) {
			sim.logger.Error("simulation stopped", "error", err)
		}
	}()
}

// stop cancels the running simulation and waits for it to exit.
func (sim *simulation) stop() {
	sim.mu.Lock()
	cancel, done := sim.cancel, sim.done
	sim.cancel, sim.done = nil, nil
	sim.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
