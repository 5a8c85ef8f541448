package sched

import (
	"math"
	"strings"

	"github.com/markphelps/optional"
)

// TaskState is the dispatch state of a task within its current period.
type TaskState int

const (
	StateReady TaskState = iota
	StateBlocked
	StateCompleted
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateBlocked:
		return "Blocked"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// TaskDescriptor is the validated input accepted by Scheduler.AddTask.
type TaskDescriptor struct {
	ID            string
	Period        int
	ExecutionTime int
	Deadline      optional.Int // relative to period start
	Aperiodic     bool
}

// Task represents one schedulable unit with a per-period execution budget.
// Counters are only changed through Execute, Reset, finish, Block and Unblock.
type Task struct {
	ID            string
	Period        int
	ExecutionTime int
	Deadline      optional.Int
	Aperiodic     bool

	remaining        int // ticks of work left in the current period
	startTime        int // absolute tick at which the current period began
	blocked          bool
	blockedResource  string
	absoluteDeadline int

	executionCount    int
	missedDeadlines   int
	completedJobs     int
	lastExecutionTime int
}

// NewTask validates d and builds a task. No task is returned on failure.
func NewTask(d TaskDescriptor) (*Task, error) {
	if strings.TrimSpace(d.ID) == "" {
		return nil, newError(KindInvalidTask, "new task", "task ID must be a non-empty string")
	}
	switch {
	case d.Aperiodic && d.Period < 0:
		return nil, newError(KindInvalidTask, "new task", "aperiodic task period must not be negative, got %d", d.Period).withTask(d.ID)
	case !d.Aperiodic && d.Period <= 0:
		return nil, newError(KindInvalidTask, "new task", "task period must be positive, got %d", d.Period).withTask(d.ID)
	}
	if d.ExecutionTime <= 0 {
		return nil, newError(KindInvalidTask, "new task", "task execution time must be positive, got %d", d.ExecutionTime).withTask(d.ID)
	}
	if dl, err := d.Deadline.Get(); err == nil && dl <= 0 {
		return nil, newError(KindInvalidTask, "new task", "task deadline must be positive, got %d", dl).withTask(d.ID)
	}
	if !d.Aperiodic && d.ExecutionTime > d.Period {
		return nil, newError(KindInvalidTask, "new task",
			"execution time (%d) cannot be greater than period (%d)", d.ExecutionTime, d.Period).withTask(d.ID)
	}

	t := &Task{
		ID:            d.ID,
		Period:        d.Period,
		ExecutionTime: d.ExecutionTime,
		Deadline:      d.Deadline,
		Aperiodic:     d.Aperiodic,
		remaining:     d.ExecutionTime,
	}
	t.absoluteDeadline = t.activationDeadline()
	return t, nil
}

// Execute performs exactly one tick of work at tick.
func (t *Task) Execute(tick int) error {
	if tick < 0 {
		return newError(KindValidation, "execute", "current time must be non-negative, got %d", tick).withTask(t.ID)
	}
	if t.blocked {
		return newError(KindResourceConflict, "execute", "cannot execute a blocked task: %s", t.ID).
			withTask(t.ID).withResource(t.blockedResource)
	}
	if t.IsCompleted() {
		return newError(KindScheduling, "execute", "cannot execute a completed task: %s", t.ID).withTask(t.ID)
	}
	if tick < t.startTime {
		return newError(KindScheduling, "execute",
			"cannot execute task before its start time: current %d, start %d", tick, t.startTime).withTask(t.ID)
	}

	t.remaining--
	t.executionCount++
	t.lastExecutionTime = tick
	return nil
}

// IsReady reports whether the task may be dispatched at tick.
// Deadline state does not gate readiness.
func (t *Task) IsReady(tick int) bool {
	return tick >= t.startTime && !t.blocked
}

// dispatchable reports whether a policy may hand the task the processor at
// tick: ready, with budget left in the current period.
func (t *Task) dispatchable(tick int) bool {
	return t.IsReady(tick) && !t.IsCompleted()
}

// IsCompleted reports whether the current period's budget is exhausted.
func (t *Task) IsCompleted() bool { return t.remaining <= 0 }

// IsBlocked reports whether the task awaits a resource.
func (t *Task) IsBlocked() bool { return t.blocked }

// Reset starts the next period. Resetting with budget left records a miss.
func (t *Task) Reset() {
	if t.remaining > 0 {
		t.missedDeadlines++
	} else {
		t.completedJobs++
	}
	t.remaining = t.ExecutionTime
	t.startTime += t.Period
	t.absoluteDeadline = t.activationDeadline()
}

// finish closes the single job of a one-shot task. Unlike Reset it leaves the
// budget exhausted, so the task stays Completed.
func (t *Task) finish() {
	t.completedJobs++
}

// Block marks the task as waiting on resourceID.
func (t *Task) Block(resourceID string) error {
	if strings.TrimSpace(resourceID) == "" {
		return newError(KindValidation, "block", "resource ID must be a non-empty string").withTask(t.ID)
	}
	t.blocked = true
	t.blockedResource = resourceID
	return nil
}

// Unblock releases the task's resource wait.
func (t *Task) Unblock() error {
	if !t.blocked {
		return newError(KindResourceConflict, "unblock", "task %s is not currently blocked", t.ID).withTask(t.ID)
	}
	t.blocked = false
	t.blockedResource = ""
	return nil
}

// State derives Ready, Blocked or Completed.
func (t *Task) State() TaskState {
	switch {
	case t.blocked:
		return StateBlocked
	case t.remaining > 0:
		return StateReady
	default:
		return StateCompleted
	}
}

// activationDeadline is startTime+deadline for periodic tasks and unbounded otherwise.
func (t *Task) activationDeadline() int {
	dl, err := t.Deadline.Get()
	if t.Aperiodic || err != nil {
		return math.MaxInt
	}
	return t.startTime + dl
}

// updateDeadline recomputes the absolute deadline relative to tick.
func (t *Task) updateDeadline(tick int) {
	if dl, err := t.Deadline.Get(); err == nil && !t.Aperiodic {
		t.absoluteDeadline = tick + dl
	}
}

func (t *Task) RemainingTime() int      { return t.remaining }
func (t *Task) StartTime() int          { return t.startTime }
func (t *Task) BlockedResource() string { return t.blockedResource }
func (t *Task) AbsoluteDeadline() int   { return t.absoluteDeadline }
func (t *Task) ExecutionCount() int     { return t.executionCount }
func (t *Task) MissedDeadlines() int    { return t.missedDeadlines }
func (t *Task) CompletedJobs() int      { return t.completedJobs }
func (t *Task) LastExecutionTime() int  { return t.lastExecutionTime }
