package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rtsched/internal/config"
	"rtsched/internal/dashboard"
	"rtsched/internal/logging"
	"rtsched/internal/sched"
)

func newServeCmd() *cobra.Command {
	var addr string
	var watchInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a paced simulation behind the live dashboard",
		Long: `Serves the status dashboard while simulating the configured task set in
real time, one tick every tick_ms. The configuration file is watched; a
change restarts the simulation with the new task set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := dashboard.NewHub(64)
			s, err := buildScheduler(cfg, logger, hub)
			if err != nil {
				return err
			}
			srv := dashboard.New(s, logger, dashboard.WithConfig(cfg), dashboard.WithHub(hub))

			sim := newSimulation(logger)
			sim.start(ctx, s, cfg)
			defer sim.stop()

			r := &reloader{srv: srv, sim: sim, hub: hub, s: s, cfg: cfg}
			go func() {
				err := config.Watch(ctx, cfg.Path, watchInterval, func(next *config.Config) {
					r.apply(ctx, next)
				}, logger)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("config watcher stopped", "error", err)
				}
			}()

			if addr == "" {
				addr = cfg.Dashboard.Addr
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Dashboard listen address (default: dashboard.addr from config)")
	cmd.Flags().DurationVar(&watchInterval, "watch-interval", time.Second, "How often to poll the config file")

	return cmd
}

// reloader applies a reloaded configuration to the running serve session.
type reloader struct {
	srv *dashboard.Server
	sim *simulation
	hub *dashboard.Hub
	s   *sched.Scheduler
	cfg *config.Config
}

// apply resets the scheduler in place when its tunables are unchanged and
// builds a new one otherwise. A configuration that fails to apply leaves the
// previous simulation running.
func (r *reloader) apply(ctx context.Context, next *config.Config) {
	// a trial build catches task sets the scheduler refuses before the live
	// one is touched
	trial, err := buildScheduler(next, logging.Discard())
	if err != nil {
		logger.Error("reload rejected, keeping previous configuration", "error", err)
		return
	}
	trial.Close()

	cur := r.cfg.Scheduler
	want := next.Scheduler
	sameScheduler := cur.Policy == want.Policy && cur.DeadlineMode == want.DeadlineMode && cur.Alerts == want.Alerts

	if !sameScheduler {
		s, err := buildScheduler(next, logger, r.hub)
		if err != nil {
			logger.Error("reload rejected, keeping previous configuration", "error", err)
			return
		}
		r.sim.stop()
		old := r.s
		r.s, r.cfg = s, next
		r.srv.Swap(s, next)
		r.hub.Notify(sched.StatusEvent{Kind: sched.StatusReset})
		old.Close()
		r.sim.start(ctx, s, next)
		logger.Info("configuration reloaded", "policy", s.Policy(), "scheduler", "rebuilt")
		return
	}

	r.sim.stop()
	r.s.Reset()
	if err := populate(r.s, next); err != nil {
		logger.Error("reload failed, restoring previous task set", "error", err)
		r.s.Reset()
		if err := populate(r.s, r.cfg); err != nil {
			// nothing left to simulate; clients still learn the set is gone
			logger.Error("restore failed, simulation stopped", "error", err)
			r.hub.Notify(sched.StatusEvent{Kind: sched.StatusReset})
			return
		}
		r.sim.start(ctx, r.s, r.cfg)
		return
	}
	r.cfg = next
	r.srv.Swap(r.s, next)
	r.sim.start(ctx, r.s, next)
	logger.Info("configuration reloaded", "policy", r.s.Policy(), "scheduler", "reset")
}
