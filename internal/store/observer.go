package store

import (
	"context"
	"log/slog"

	"rtsched/internal/sched"
)

// FaultLogger persists every fault notification of one run.
type FaultLogger struct {
	ctx    context.Context
	store  Store
	runID  string
	logger *slog.Logger
}

// NewFaultLogger returns an observer recording faults under runID.
func NewFaultLogger(ctx context.Context, st Store, runID string, logger *slog.Logger) *FaultLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &FaultLogger{ctx: ctx, store: st, runID: runID, logger: logger.With("component", "store")}
}

func (l *FaultLogger) Notify(ev sched.StatusEvent) {
	if ev.Kind != sched.StatusFault || ev.Err == nil {
		return
	}
	code := sched.KindValidation.Code()
	if kind, ok := sched.KindOf(ev.Err); ok {
		code = kind.Code()
	}
	f := &Fault{RunID: l.runID, Tick: ev.Tick, TaskID: ev.TaskID, Code: code, Message: ev.Err.Error()}
	if err := l.store.RecordFault(l.ctx, f); err != nil {
		l.logger.Error("record fault failed", "run_id", l.runID, "tick", ev.Tick, "error", err)
	}
}
