package cli

import (
	"fmt"
	"log/slog"

	"rtsched/internal/config"
	"rtsched/internal/sched"
)

// buildScheduler creates a scheduler populated from cfg.
func buildScheduler(cfg *config.Config, logger *slog.Logger, observers ...sched.Observer) (*sched.Scheduler, error) {
	opts := []sched.Option{sched.WithLogger(logger)}
	if len(observers) > 0 {
		opts = append(opts, sched.WithObserver(sched.MultiObserver(observers)))
	}

	s, err := sched.New(cfg.Scheduler, opts...)
	if err != nil {
		return nil, err
	}
	if err := populate(s, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// populate registers cfg's resources and tasks on an empty scheduler.
func populate(s *sched.Scheduler, cfg *config.Config) error {
	for _, id := range cfg.ResourceIDs() {
		if err := s.AddResource(id); err != nil {
			return fmt.Errorf("resource %s: %w", id, err)
		}
	}
	for _, d := range cfg.Descriptors() {
		if err := s.AddTask(d); err != nil {
			return fmt.Errorf("task %s: %w", d.ID, err)
		}
	}
	return nil
}
