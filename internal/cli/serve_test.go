package cli

import (
	"context"
	"reflect"
	"testing"

	"rtsched/internal/config"
	"rtsched/internal/dashboard"
	"rtsched/internal/logging"
	"rtsched/internal/sched"
)

func testReloader(t *testing.T) (*reloader, context.Context) {
	t.Helper()
	logger = logging.Discard()

	cfg := config.Default()
	cfg.Scheduler.Policy = "rate-monotonic"
	cfg.Scheduler.TickMS = 1000
	cfg.Resources = []config.ResourceSpec{{ID: "R1"}}
	cfg.Tasks = []config.TaskSpec{
		{ID: "T1", Period: 4, ExecutionTime: 1},
		{ID: "T2", Period: 8, ExecutionTime: 2},
	}

	hub := dashboard.NewHub(64)
	s, err := buildScheduler(&cfg, logger, hub)
	if err != nil {
		t.Fatal(err)
	}
	srv := dashboard.New(s, logger, dashboard.WithConfig(&cfg), dashboard.WithHub(hub))

	ctx, cancel := context.WithCancel(context.Background())
	sim := newSimulation(logger)
	sim.start(ctx, s, &cfg)

	r := &reloader{srv: srv, sim: sim, hub: hub, s: s, cfg: &cfg}
	t.Cleanup(func() {
		sim.stop()
		cancel()
		r.s.Close()
	})
	return r, ctx
}

// sawReset drains the buffered notifications and reports whether one was a reset.
func sawReset(events <-chan sched.StatusEvent) bool {
	var reset bool
	for {
		select {
		case ev := <-events:
			if ev.Kind == sched.StatusReset {
				reset = true
			}
		default:
			return reset
		}
	}
}

func withTasks(cfg *config.Config, tasks ...config.TaskSpec) *config.Config {
	next := *cfg
	next.Tasks = tasks
	return &next
}

func TestReloader_RejectsTaskSetTheSchedulerRefuses(t *testing.T) {
	r, ctx := testReloader(t)
	prev, prevSched := r.cfg, r.s
	events, cancel := r.hub.Subscribe()
	defer cancel()

	// the file format accepts aperiodic tasks; rate-monotonic does not
	next := withTasks(r.cfg, config.TaskSpec{ID: "T1", Period: 4, ExecutionTime: 1},
		config.TaskSpec{ID: "AP", ExecutionTime: 1, Aperiodic: true})
	r.apply(ctx, next)

	if r.cfg != prev || r.s != prevSched {
		t.Error("expected the previous configuration to stay in effect")
	}
	if got, want := r.s.Order(), []string{"T1", "T2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if sawReset(events) {
		t.Error("a rejected reload must not reset the dashboard")
	}
}

func TestReloader_ResetsInPlace(t *testing.T) {
	r, ctx := testReloader(t)
	prevSched := r.s
	events, cancel := r.hub.Subscribe()
	defer cancel()

	next := withTasks(r.cfg, config.TaskSpec{ID: "P1", Period: 5, ExecutionTime: 1})
	r.apply(ctx, next)

	if r.s != prevSched {
		t.Error("expected the scheduler to be reused when its settings are unchanged")
	}
	if r.cfg != next {
		t.Error("expected the new configuration to be recorded")
	}
	if got, want := r.s.Order(), []string{"P1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !sawReset(events) {
		t.Error("expected a reset notification")
	}
}

func TestReloader_RebuildsOnPolicyChange(t *testing.T) {
	r, ctx := testReloader(t)
	prevSched := r.s
	events, cancel := r.hub.Subscribe()
	defer cancel()

	next := withTasks(r.cfg, config.TaskSpec{ID: "P1", Period: 5, ExecutionTime: 1})
	next.Scheduler.Policy = "edf"
	r.apply(ctx, next)

	if r.s == prevSched {
		t.Fatal("expected a new scheduler for a new policy")
	}
	if r.s.Policy() != sched.EarliestDeadlineFirst {
		t.Errorf("expected edf, got %s", r.s.Policy())
	}
	if got, want := r.s.Order(), []string{"P1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !sawReset(events) {
		t.Error("expected a reset notification")
	}
}
