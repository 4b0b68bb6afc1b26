package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    integrator   TEXT NOT NULL,
    pattern      TEXT NOT NULL,
    space        TEXT NOT NULL,
    ranks        INTEGER NOT NULL,
    time_limit   REAL NOT NULL,
    cycle_limit  INTEGER NOT NULL,
    cycles       INTEGER NOT NULL DEFAULT 0,
    final_time   REAL NOT NULL DEFAULT 0,
    block_cycles INTEGER NOT NULL DEFAULT 0,
    signal       TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    finished_at  DATETIME
)`

const createCyclesTable = `
CREATE TABLE IF NOT EXISTS cycles (
    run_id      TEXT NOT NULL REFERENCES runs(id),
    cycle       INTEGER NOT NULL,
    time        REAL NOT NULL,
    dt          REAL NOT NULL,
    units       INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (run_id, cycle)
)`

const runColumns = `id, status, integrator, pattern, space, ranks, time_limit,
	cycle_limit, cycles, final_time, block_cycles, signal, error, created_at, finished_at`

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, ddl := range map[string]string{"runs": createRunsTable, "cycles": createCyclesTable} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s table: %w", name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	r := &model.Run{}
	err := row.Scan(
		&r.ID, &r.Status, &r.Integrator, &r.Pattern, &r.Space, &r.Ranks, &r.TimeLimit,
		&r.CycleLimit, &r.Cycles, &r.FinalTime, &r.BlockCycles, &r.Signal, &r.Error,
		&r.CreatedAt, &r.FinishedAt,
	)
	return r, err
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Integrator, r.Pattern, r.Space, r.Ranks, r.TimeLimit,
		r.CycleLimit, r.Cycles, r.FinalTime, r.BlockCycles, r.Signal, r.Error,
		r.CreatedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns a paginated list of runs ordered by created_at DESC,
// along with the total count of all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// currentStatus reads the status of a run inside tx.
func currentStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get run status: %w", err)
	}
	return status, nil
}

// UpdateRunStatus moves a run to status. For terminal statuses it also sets
// finished_at.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if model.IsTerminal(status) {
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE runs SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	return tx.Commit()
}

// FinishRun records the outcome of a run: its terminal status, counters,
// reported signal and error.
func (s *SQLiteStore) FinishRun(ctx context.Context, r *model.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(ctx, tx, r.ID)
	if err != nil {
		return err
	}
	if !model.IsTerminal(r.Status) || !model.ValidTransition(current, r.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, r.Status)
	}

	finished := time.Now().UTC()
	if r.FinishedAt != nil {
		finished = *r.FinishedAt
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, cycles = ?, final_time = ?, block_cycles = ?,
			signal = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		r.Status, r.Cycles, r.FinalTime, r.BlockCycles, r.Signal, r.Error, finished, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	r.FinishedAt = &finished

	return tx.Commit()
}

// GetRunStats computes aggregate statistics over all runs.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		CountByStatus: make(map[string]int),
		CountBySpace:  make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(cycles), 0), COALESCE(SUM(block_cycles), 0) FROM runs",
	).Scan(&stats.Total, &stats.AvgCycles, &stats.TotalBlockCycles)
	if err != nil {
		return nil, fmt.Errorf("aggregate runs: %w", err)
	}

	for column, counts := range map[string]map[string]int{
		"status": stats.CountByStatus,
		"space":  stats.CountBySpace,
	} {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+column+", COUNT(*) FROM runs GROUP BY "+column)
		if err != nil {
			return nil, fmt.Errorf("count runs by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s count: %w", column, err)
			}
			counts[key] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate %s counts: %w", column, err)
		}
	}

	return stats, nil
}

// InsertCycle appends one completed cycle of a run.
func (s *SQLiteStore) InsertCycle(ctx context.Context, c *model.Cycle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (run_id, cycle, time, dt, units, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Cycle, c.Time, c.Dt, c.Units, c.DurationMS, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// ListCycles returns the cycles of a run in cycle order.
func (s *SQLiteStore) ListCycles(ctx context.Context, runID string, limit, offset int) ([]model.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, cycle, time, dt, units, duration_ms, created_at
		FROM cycles WHERE run_id = ? ORDER BY cycle ASC LIMIT ? OFFSET ?`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []model.Cycle
	for rows.Next() {
		var c model.Cycle
		if err := rows.Scan(&c.RunID, &c.Cycle, &c.Time, &c.Dt, &c.Units, &c.DurationMS, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	return cycles, nil
}
