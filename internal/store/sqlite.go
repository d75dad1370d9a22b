package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/me/cyclelaunch/pkg/model"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Leaser and RunLog using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: an in-memory database is per connection, and the lease
	// upsert relies on SQLite's single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
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

// --- Leases ---

// Acquire claims key for owner. It succeeds when no lease exists, the
// existing lease has expired, or owner already holds it.
func (s *SQLiteStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (Lease, error) {
	s.logger.Debug("sql", "op", "upsert", "table", "leases", "key", key, "owner", owner)

	now := s.now()
	lease := Lease{Key: key, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leases (lease_key, owner, acquired_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(lease_key) DO UPDATE SET
		   owner = excluded.owner, acquired_at = excluded.acquired_at, expires_at = excluded.expires_at
		 WHERE leases.expires_at <= ? OR leases.owner = excluded.owner`,
		key, owner, now.UnixNano(), lease.ExpiresAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return Lease{}, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Lease{}, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if n > 0 {
		return lease, nil
	}

	held, err := s.GetLease(ctx, key)
	if err != nil {
		return Lease{}, fmt.Errorf("acquire lease %s: %w", key, ErrLeaseHeld)
	}
	return Lease{}, fmt.Errorf("acquire lease %s: %w (owner %s until %s)",
		key, ErrLeaseHeld, held.Owner, held.ExpiresAt.Format(time.RFC3339))
}

// Release drops lease if it is still owned by lease.Owner.
func (s *SQLiteStore) Release(ctx context.Context, lease Lease) error {
	s.logger.Debug("sql", "op", "delete", "table", "leases", "key", lease.Key, "owner", lease.Owner)
	_, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE lease_key = ? AND owner = ?`, lease.Key, lease.Owner)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", lease.Key, err)
	}
	return nil
}

// ForceRelease drops the lease on key regardless of owner. It reports
// whether a lease was removed.
func (s *SQLiteStore) ForceRelease(ctx context.Context, key string) (bool, error) {
	s.logger.Debug("sql", "op", "force_delete", "table", "leases", "key", key)
	res, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE lease_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetLease returns the stored lease for key, expired or not.
// Returns sql.ErrNoRows when there is none.
func (s *SQLiteStore) GetLease(ctx context.Context, key string) (Lease, error) {
	var l Lease
	var acquired, expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT lease_key, owner, acquired_at, expires_at FROM leases WHERE lease_key = ?`, key,
	).Scan(&l.Key, &l.Owner, &acquired, &expires)
	if err != nil {
		return Lease{}, err
	}
	l.AcquiredAt = time.Unix(0, acquired).UTC()
	l.ExpiresAt = time.Unix(0, expires).UTC()
	return l, nil
}

// --- Run audit ---

// RecordRun appends rec to the audit table.
func (s *SQLiteStore) RecordRun(ctx context.Context, rec model.RunRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", rec.ID)

	var finishedAt *string
	if rec.FinishedAt != nil {
		f := rec.FinishedAt.UTC().Format(timestampLayout)
		finishedAt = &f
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, cycle_date, state, exit_code, eligible, job_id, error_kind, error,
		                   started_at, finished_at, host, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Experiment, rec.CycleDate, string(rec.State), rec.ExitCode, boolToInt(rec.Eligible),
		rec.JobID, string(rec.ErrorKind), rec.Error,
		rec.StartedAt.UTC().Format(timestampLayout), finishedAt, rec.Host, rec.Attempts,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, optionally filtered by
// experiment. A non-positive limit defaults to 20.
func (s *SQLiteStore) ListRuns(ctx context.Context, experiment string, limit int) ([]model.RunRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "experiment", experiment)

	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, experiment, cycle_date, state, exit_code, eligible, job_id, error_kind, error,
	                 started_at, finished_at, host, attempts
	          FROM runs`
	var args []any
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var state, kind, startedAt string
		var eligible int
		var finishedAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Experiment, &rec.CycleDate, &state, &rec.ExitCode, &eligible,
			&rec.JobID, &kind, &rec.Error, &startedAt, &finishedAt, &rec.Host, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.State = model.RunState(state)
		rec.ErrorKind = model.ErrorKind(kind)
		rec.Eligible = eligible != 0
		rec.StartedAt, _ = time.Parse(timestampLayout, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(timestampLayout, finishedAt.String)
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsLeaseHeld reports whether err came from a lease conflict.
func IsLeaseHeld(err error) bool {
	return errors.Is(err, ErrLeaseHeld)
}
