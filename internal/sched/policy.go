// internal/sched/policy.go

package sched

import "strings"

// PolicyKind names a dispatch discipline.
type PolicyKind string

const (
	RateMonotonic         PolicyKind = "rate-monotonic"
	EarliestDeadlineFirst PolicyKind = "edf"
)

// EDF deadline modes.
const (
	DeadlineModeTick       = "tick"       // absoluteDeadline = tick + deadline, every selection
	DeadlineModeActivation = "activation" // absoluteDeadline = startTime + deadline, fixed per period
)

// ParsePolicy maps a configuration string to a PolicyKind.
func ParsePolicy(s string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rm", "rate-monotonic", "ratemonotonic":
		return RateMonotonic, nil
	case "edf", "earliest-deadline-first":
		return EarliestDeadlineFirst, nil
	default:
		return "", newError(KindValidation, "parse policy", "unknown scheduling policy %q", s)
	}
}

// Policy orders tasks and selects the next one to dispatch. The Scheduler
// owns the tick loop and the task index; a Policy owns dispatch order.
type Policy interface {
	Kind() PolicyKind

	// Admit rejects descriptors the discipline cannot schedule.
	Admit(t *Task) error
	Insert(t *Task)
	Remove(t *Task)

	// Select picks the task to run at tick. fresh reports a new dispatch
	// decision, which the scheduler records in its history.
	Select(tick int, current *Task) (t *Task, fresh bool)

	// Retire is called when t exhausted its budget, before any reset. It
	// returns true when t leaves the dispatch order for good; the scheduler
	// still keeps it for status queries.
	Retire(t *Task) bool

	// Tasks returns every task in dispatch order.
	Tasks() []*Task
	Clear()
}

// NewPolicy builds the policy selected by cfg.
func NewPolicy(cfg Config) (Policy, error) {
	kind, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if kind == EarliestDeadlineFirst {
		return NewEDF(cfg.DeadlineMode == DeadlineModeActivation), nil
	}
	return NewRM(), nil
}

// orderKey is used as a key in the red-black trees. rank is the ordering
// attribute (period or absolute deadline); seq keeps insertion order on ties.
type orderKey struct {
	rank int
	seq  uint64
}

// cmp implements the Comparator for orderKey.
func cmp(a, b any) int {
	ka, kb := a.(orderKey), b.(orderKey)
	switch {
	case ka.rank < kb.rank:
		return -1
	case ka.rank > kb.rank:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
