package job

import (
	"context"
	"fmt"
	"strings"

	"rtsched/internal/sched"
)

// Action is what a script step does to the scheduler.
type Action string

const (
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
	ActionRun     Action = "run"
)

// Step is one scripted contention event.
type Step struct {
	Action   Action `yaml:"action" json:"action"`
	Task     string `yaml:"task,omitempty" json:"task,omitempty"`
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`
	Ticks    int    `yaml:"ticks,omitempty" json:"ticks,omitempty"`
}

func (s Step) String() string {
	switch s.Action {
	case ActionBlock:
		return fmt.Sprintf("block %s on %s", s.Task, s.Resource)
	case ActionUnblock:
		return fmt.Sprintf("unblock %s", s.Task)
	case ActionRun:
		return fmt.Sprintf("run %d ticks", s.Ticks)
	default:
		return string(s.Action)
	}
}

// Validate checks the step in isolation; task and resource existence is
// left to the scheduler.
func (s Step) Validate() error {
	switch strings.ToLower(string(s.Action)) {
	case string(ActionBlock):
		if s.Task == "" || s.Resource == "" {
			return fmt.Errorf("block needs a task and a resource")
		}
	case string(ActionUnblock):
		if s.Task == "" {
			return fmt.Errorf("unblock needs a task")
		}
	case string(ActionRun):
		if s.Ticks <= 0 {
			return fmt.Errorf("run needs a positive tick count, got %d", s.Ticks)
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

// Target is the part of the scheduler a script drives.
type Target interface {
	BlockTask(taskID, resourceID string) error
	UnblockTask(taskID string) error
	Run(duration int) error
	Step()
}

// Play executes steps in order, stopping at the first failure or when ctx
// is done. Run steps simulate their ticks back to back.
func Play(ctx context.Context, t Target, steps []Step) error {
	return play(ctx, t, steps, func(n int) error { return t.Run(n) })
}

// PlayPaced is Play with run steps driven tick by tick from clock, so a live
// observer sees the simulation unfold.
func PlayPaced(ctx context.Context, t Target, steps []Step, clock *sched.TickClock) error {
	return play(ctx, t, steps, func(n int) error {
		return clock.Drive(ctx, n, t.Step)
	})
}

func play(ctx context.Context, t Target, steps []Step, run func(int) error) error {
	for i, st := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		var err error
		switch Action(strings.ToLower(string(st.Action))) {
		case ActionBlock:
			err = t.BlockTask(st.Task, st.Resource)
		case ActionUnblock:
			err = t.UnblockTask(st.Task)
		case ActionRun:
			err = run(st.Ticks)
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st, err)
		}
	}
	return nil
}

// DemoScript is the classic contention demo: the second and third tasks
// block on resource, the system runs 48 ticks, both are released and the
// system runs 24 more.
func DemoScript(tasks []sched.TaskDescriptor, resource string) []Step {
	var blocked []string
	for i := 1; i < len(tasks) && i <= 2; i++ {
		blocked = append(blocked, tasks[i].ID)
	}

	steps := make([]Step, 0, 2*len(blocked)+2)
	for _, id := range blocked {
		steps = append(steps, Step{Action: ActionBlock, Task: id, Resource: resource})
	}
	steps = append(steps, Step{Action: ActionRun, Ticks: 48})
	for _, id := range blocked {
		steps = append(steps, Step{Action: ActionUnblock, Task: id})
	}
	return append(steps, Step{Action: ActionRun, Ticks: 24})
}
