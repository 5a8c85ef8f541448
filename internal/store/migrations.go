package store

import (
	"context"
	"database/sql"
)

// schema holds the DDL; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		policy           TEXT NOT NULL,
		environment      TEXT NOT NULL DEFAULT '',
		config_path      TEXT NOT NULL DEFAULT '',
		ticks            INTEGER NOT NULL DEFAULT 0,
		execution_time   INTEGER NOT NULL DEFAULT 0,
		idle_time        INTEGER NOT NULL DEFAULT 0,
		missed_deadlines INTEGER NOT NULL DEFAULT 0,
		started_at       TEXT NOT NULL,
		finished_at      TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS faults (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		tick       INTEGER NOT NULL,
		task_id    TEXT NOT NULL DEFAULT '',
		code       TEXT NOT NULL,
		message    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_faults_run_id ON faults(run_id, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
