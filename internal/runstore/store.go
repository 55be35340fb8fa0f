// Package runstore keeps a SQLite ledger of alignment runs: the settings
// of each run, the precision reached with every reference and the
// pairwise transforms. Trajectories themselves live in text files.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajalign/internal/timeutil"
)

// ErrNotFound is returned by GetRun for an unknown run.
var ErrNotFound = errors.New("run not found")

// Store is a run ledger backed by a SQLite file.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens or creates the ledger at path and applies pending migrations.
// A nil clock uses the wall clock.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps the pragmas below in effect
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	s := &Store{db: db, clock: clock}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one consensus averaging run.
type Run struct {
	ID            string
	CreatedAt     time.Time
	Experiment    string
	Version       string
	Trajectories  int
	Median        bool
	UnifyStartEnd bool
	Best          int
	Worst         int
	// LieDownAngle is NaN when the average was not laid down.
	LieDownAngle float64
	Duration     time.Duration
	// ConfigJSON is the effective configuration.
	ConfigJSON string

	References []Reference
	Pairs      []Pair
}

// Reference is the outcome of averaging onto one reference.
type Reference struct {
	Index int
	File  string
	// Precision is NaN when undefined.
	Precision float64
}

// Pair is one cell of the pairwise matrix, j aligned onto i.
type Pair struct {
	I, J  int
	Angle float64
	Lag   int
	Score float64
}

// RecordRun stores run with its references and pairs in one transaction.
// An empty ID is replaced by a new UUID and a zero CreatedAt by the
// current time; both are written back to run.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}
	cfg := run.ConfigJSON
	if cfg == "" {
		cfg = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trajalign_runs (
			run_id, created_unix_ns, experiment, version, trajectories, median,
			unify_start_end, best_reference, worst_reference, lie_down_angle,
			duration_ms, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Experiment, run.Version, run.Trajectories,
		run.Median, run.UnifyStartEnd, run.Best, run.Worst, nullFloat(run.LieDownAngle),
		run.Duration.Milliseconds(), cfg,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, r := range run.References {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trajalign_run_references (run_id, reference_index, file, precision)
			VALUES (?, ?, ?, ?)`,
			run.ID, r.Index, r.File, nullFloat(r.Precision))
		if err != nil {
			return fmt.Errorf("insert reference %d of run %s: %w", r.Index, run.ID, err)
		}
	}
	for _, p := range run.Pairs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trajalign_run_pairs (run_id, i, j, angle, lag, score)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, p.I, p.J, nullFloat(p.Angle), p.Lag, nullFloat(p.Score))
		if err != nil {
			return fmt.Errorf("insert pair (%d, %d) of run %s: %w", p.I, p.J, run.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `run_id, created_unix_ns, experiment, version, trajectories, median,
	unify_start_end, best_reference, worst_reference, lie_down_angle, duration_ms, config_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r          Run
		created    int64
		durationMs int64
		angle      sql.NullFloat64
	)
	err := row.Scan(&r.ID, &created, &r.Experiment, &r.Version, &r.Trajectories, &r.Median,
		&r.UnifyStartEnd, &r.Best, &r.Worst, &angle, &durationMs, &r.ConfigJSON)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.LieDownAngle = fromNull(angle)
	return r, nil
}

// GetRun returns a run with its references and pairs.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM trajalign_runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	refs, err := s.db.QueryContext(ctx, `
		SELECT reference_index, file, precision FROM trajalign_run_references
		WHERE run_id = ? ORDER BY reference_index`, id)
	if err != nil {
		return nil, fmt.Errorf("get references of run %s: %w", id, err)
	}
	for refs.Next() {
		var r Reference
		var p sql.NullFloat64
		if err := refs.Scan(&r.Index, &r.File, &p); err != nil {
			refs.Close()
			return nil, fmt.Errorf("scan reference of run %s: %w", id, err)
		}
		r.Precision = fromNull(p)
		run.References = append(run.References, r)
	}
	refs.Close()
	if err := refs.Err(); err != nil {
		return nil, err
	}

	pairs, err := s.db.QueryContext(ctx, `
		SELECT i, j, angle, lag, score FROM trajalign_run_pairs
		WHERE run_id = ? ORDER BY i, j`, id)
	if err != nil {
		return nil, fmt.Errorf("get pairs of run %s: %w", id, err)
	}
	defer pairs.Close()
	for pairs.Next() {
		var p Pair
		var angle, score sql.NullFloat64
		if err := pairs.Scan(&p.I, &p.J, &angle, &p.Lag, &score); err != nil {
			return nil, fmt.Errorf("scan pair of run %s: %w", id, err)
		}
		p.Angle = fromNull(angle)
		p.Score = fromNull(score)
		run.Pairs = append(run.Pairs, p)
	}
	if err := pairs.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, without references and
// pairs. A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM trajalign_runs ORDER BY created_unix_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullFloat stores non-finite values as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
