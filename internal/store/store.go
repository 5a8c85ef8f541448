package store

import (
	"context"
	"time"

	"rtsched/internal/sched"
)

// Run is one simulation session and its final totals.
type Run struct {
	ID              string     `json:"id"`
	Policy          string     `json:"policy"`
	Environment     string     `json:"environment"`
	ConfigPath      string     `json:"configPath"`
	Ticks           int        `json:"ticks"`
	ExecutionTime   int        `json:"executionTime"`
	IdleTime        int        `json:"idleTime"`
	MissedDeadlines int        `json:"missedDeadlines"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Fault is a failed tick execution recorded during a run.
type Fault struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	Tick      int       `json:"tick"`
	TaskID    string    `json:"taskId"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists runs and their faults.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, report sched.StatisticsReport) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	RecordFault(ctx context.Context, f *Fault) error
	ListFaults(ctx context.Context, runID string) ([]*Fault, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
