package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rtsched/internal/sched"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// one connection: keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, policy, environment, config_path, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Policy, run.Environment, run.ConfigPath, run.StartedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, report sched.StatisticsReport) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ticks = ?, execution_time = ?, idle_time = ?, missed_deadlines = ?, finished_at = ?
		 WHERE id = ?`,
		report.Ticks, report.TotalExecutionTime, report.TotalIdleTime, report.TotalMissedDeadlines,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

const runColumns = `id, policy, environment, config_path, ticks, execution_time, idle_time, missed_deadlines, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&r.ID, &r.Policy, &r.Environment, &r.ConfigPath, &r.Ticks, &r.ExecutionTime,
		&r.IdleTime, &r.MissedDeadlines, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finishedAt.String)
		r.FinishedAt = &t
	}
	return &r, nil
}

// GetRun returns nil, nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRuns returns the most recent runs first; limit <= 0 means 50.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Faults ---

func (s *SQLiteStore) RecordFault(ctx context.Context, f *Fault) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	s.logger.Debug("sql", "op", "insert", "table", "faults", "run_id", f.RunID, "tick", f.Tick)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO faults (run_id, tick, task_id, code, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Tick, f.TaskID, f.Code, f.Message, f.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

// ListFaults returns the faults of a run in tick order.
func (s *SQLiteStore) ListFaults(ctx context.Context, runID string) ([]*Fault, error) {
	s.logger.Debug("sql", "op", "list", "table", "faults", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, tick, task_id, code, message, created_at
		 FROM faults WHERE run_id = ? ORDER BY tick, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faults []*Fault
	for rows.Next() {
		var f Fault
		var createdAt string
		if err := rows.Scan(&f.ID, &f.RunID, &f.Tick, &f.TaskID, &f.Code, &f.Message, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		faults = append(faults, &f)
	}
	return faults, rows.Err()
}
