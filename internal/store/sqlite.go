package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/kosched/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
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

// --- Run CRUD ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	state := run.State
	if state == "" {
		state = model.RunStateRunning
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, policy, state, timer_freq, time_slice, ticks, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Policy, string(state),
		run.TimerFreq, run.TimeSlice, run.Ticks, run.Error,
		run.StartedAt.Format(time.RFC3339Nano), formatTimePtr(run.FinishedAt),
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, policy, state, timer_freq, time_slice, ticks, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	// Build WHERE clause dynamically based on filters.
	var whereClauses []string
	var countArgs []any

	if opts.State != "" {
		whereClauses = append(whereClauses, "state = ?")
		countArgs = append(countArgs, opts.State)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Count query.
	var total int
	countQuery := `SELECT COUNT(*) FROM runs` + whereSQL
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// List query with pagination.
	listQuery := `SELECT id, scenario, policy, state, timer_freq, time_slice, ticks, error, started_at, finished_at
		FROM runs` + whereSQL + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, ticks = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.State), run.Ticks, run.Error, formatTimePtr(run.FinishedAt), run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	// Trace rows go with the run.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE run_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// --- Trace data ---

func (s *SQLiteStore) AppendEvents(ctx context.Context, runID string, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert", "table", "events", "run_id", runID, "count", len(events))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (run_id, tick, thread_id, thread, kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, runID, ev.Tick, ev.ThreadID, ev.Thread, ev.Kind); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]*model.Event, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "events", "run_id", runID)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, run_id, tick, thread_id, thread, kind
		 FROM events WHERE run_id = ? ORDER BY seq ASC LIMIT ? OFFSET ?`,
		runID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.Seq, &ev.RunID, &ev.Tick, &ev.ThreadID, &ev.Thread, &ev.Kind); err != nil {
			return nil, 0, err
		}
		events = append(events, &ev)
	}
	return events, total, rows.Err()
}

func (s *SQLiteStore) AppendSamples(ctx context.Context, runID string, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert", "table", "samples", "run_id", runID, "count", len(samples))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, tick, load_avg_100, ready_count, running) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sm := range samples {
		if _, err := stmt.ExecContext(ctx, runID, sm.Tick, sm.LoadAvg100, sm.ReadyCount, sm.Running); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListSamples(ctx context.Context, runID string) ([]*model.Sample, error) {
	s.logger.Debug("sql", "op", "list", "table", "samples", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tick, load_avg_100, ready_count, running
		 FROM samples WHERE run_id = ? ORDER BY tick ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*model.Sample
	for rows.Next() {
		var sm model.Sample
		if err := rows.Scan(&sm.RunID, &sm.Tick, &sm.LoadAvg100, &sm.ReadyCount, &sm.Running); err != nil {
			return nil, err
		}
		samples = append(samples, &sm)
	}
	return samples, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var state, startedAt string
	var finishedAt *string

	if err := row.Scan(&run.ID, &run.Scenario, &run.Policy, &state,
		&run.TimerFreq, &run.TimeSlice, &run.Ticks, &run.Error,
		&startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *finishedAt)
		run.FinishedAt = &t
	}
	return &run, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
