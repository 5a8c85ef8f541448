// internal/sched/schedulerEvent.go

package sched

import "fmt"

// Action is the kind of a history record.
type Action int

const (
	ActionScheduled Action = iota
	ActionCompleted
	ActionMissed
	ActionDeadlineOverrun
	ActionFault
	ActionRetired
)

func (a Action) String() string {
	switch a {
	case ActionScheduled:
		return "scheduled"
	case ActionCompleted:
		return "completed"
	case ActionMissed:
		return "missed"
	case ActionDeadlineOverrun:
		return "deadline-overrun"
	case ActionFault:
		return "fault"
	case ActionRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// MarshalText renders the action by name in JSON and CSV output.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	for c := ActionScheduled; c <= ActionRetired; c++ {
		if c.String() == string(b) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown history action %q", b)
}

// HistoryEntry is one append-only execution history record.
type HistoryEntry struct {
	Tick   int    `json:"tick"`
	TaskID string `json:"taskId"`
	Action Action `json:"action"`
}

// Alert is a notable event kept in the bounded recent-alerts window.
type Alert struct {
	Tick    int    `json:"tick"`
	TaskID  string `json:"taskId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusKind represents the type of scheduler notification.
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusFault
	StatusReset
)

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusFault:
		return "Fault"
	case StatusReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

// StatusEvent is emitted after every tick and on faults.
type StatusEvent struct {
	Kind   StatusKind
	Tick   int
	TaskID string // task dispatched (StatusTick) or failing (StatusFault); empty when idle
	Err    error  // set for StatusFault
}

// Observer receives scheduler notifications. It is called outside the
// scheduler lock, on the goroutine driving Run.
type Observer interface {
	Notify(ev StatusEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StatusEvent)

func (f ObserverFunc) Notify(ev StatusEvent) { f(ev) }

// MultiObserver fans a notification out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Notify(ev StatusEvent) {
	for _, o := range m {
		if o != nil {
			o.Notify(ev)
		}
	}
}
