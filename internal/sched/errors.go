// internal/sched/errors.go

package sched

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a scheduler failure.
type Kind int

const (
	KindValidation       Kind = iota // malformed call arguments
	KindInvalidTask                  // malformed task descriptor
	KindDeadline                     // missing mandatory deadline
	KindScheduling                   // duplicate/unknown task, out-of-window execution
	KindResourceConflict             // blocked execution, bad unblock, duplicate resource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindInvalidTask:
		return "InvalidTaskError"
	case KindDeadline:
		return "DeadlineError"
	case KindScheduling:
		return "SchedulingError"
	case KindResourceConflict:
		return "ResourceConflictError"
	default:
		return "Error"
	}
}

// Code returns the stable error code reported to logs and the fault store.
func (k Kind) Code() string {
	switch k {
	case KindInvalidTask:
		return "RTOS_101"
	case KindDeadline:
		return "RTOS_102"
	case KindScheduling:
		return "RTOS_103"
	case KindResourceConflict:
		return "RTOS_104"
	default:
		return "RTOS_000"
	}
}

// Error is the typed failure raised by tasks and schedulers.
type Error struct {
	Kind       Kind
	Op         string // operation that failed, e.g. "execute"
	TaskID     string
	ResourceID string
	Msg        string
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrInvalidTask      = &Error{Kind: KindInvalidTask}
	ErrDeadline         = &Error{Kind: KindDeadline}
	ErrScheduling       = &Error{Kind: KindScheduling}
	ErrResourceConflict = &Error{Kind: KindResourceConflict}
)

func newError(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) withTask(id string) *Error {
	e.TaskID = id
	return e
}

func (e *Error) withResource(id string) *Error {
	e.ResourceID = id
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind.Code(), e.Kind)
	if e.Op != "" {
		fmt.Fprintf(&b, " (%s)", e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Op == "" && t.Kind == e.Kind
}

// KindOf extracts the Kind of err. ok is false when err is not a scheduler error.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
