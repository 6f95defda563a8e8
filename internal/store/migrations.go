package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all trace tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		scenario    TEXT NOT NULL,
		policy      TEXT NOT NULL DEFAULT 'priority',
		state       TEXT NOT NULL DEFAULT 'RUNNING',
		timer_freq  INTEGER NOT NULL,
		time_slice  INTEGER NOT NULL,
		ticks       INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id    TEXT NOT NULL,
		tick      INTEGER NOT NULL,
		thread_id INTEGER NOT NULL,
		thread    TEXT NOT NULL,
		kind      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS samples (
		run_id       TEXT NOT NULL,
		tick         INTEGER NOT NULL,
		load_avg_100 INTEGER NOT NULL,
		ready_count  INTEGER NOT NULL,
		running      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id)`,
	// Compound index for per-run event paging in tick order
	`CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_samples_run_id ON samples(run_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "runs",
		column:   "error",
		alterSQL: "ALTER TABLE runs ADD COLUMN error TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Execute ALTER TABLE statements idempotently.
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil // Column already exists
		}
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
