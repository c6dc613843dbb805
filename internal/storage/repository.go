package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
        key        TEXT PRIMARY KEY,
        value      TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,
	`CREATE TABLE IF NOT EXISTS poll_cycles (
        id                UUID PRIMARY KEY,
        seq               BIGINT NOT NULL,
        range_hours       INTEGER NOT NULL,
        started_at        TIMESTAMPTZ NOT NULL,
        finished_at       TIMESTAMPTZ NOT NULL,
        outcome           TEXT NOT NULL,
        unavailable       TEXT[] NOT NULL DEFAULT '{}',
        history_count     INTEGER NOT NULL DEFAULT 0,
        consumption_count INTEGER NOT NULL DEFAULT 0,
        monthly_count     INTEGER NOT NULL DEFAULT 0,
        error             TEXT
    );`,
	`CREATE INDEX IF NOT EXISTS poll_cycles_finished_at_idx ON poll_cycles (finished_at DESC);`,
}

const (
	getPreferenceSQL = `SELECT value FROM preferences WHERE key = $1;`

	upsertPreferenceSQL = `INSERT INTO preferences (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value      = EXCLUDED.value,
        updated_at = EXCLUDED.updated_at;`

	insertCycleSQL = `INSERT INTO poll_cycles (
        id,
        seq,
        range_hours,
        started_at,
        finished_at,
        outcome,
        unavailable,
        history_count,
        consumption_count,
        monthly_count,
        error
    ) VALUES (
        $1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    );`

	listRecentCyclesSQL = `SELECT
        id::text,
        seq,
        range_hours,
        started_at,
        finished_at,
        outcome,
        unavailable,
        history_count,
        consumption_count,
        monthly_count,
        error
    FROM poll_cycles
    ORDER BY finished_at DESC
    LIMIT $1;`

	deleteCyclesBeforeSQL = `DELETE FROM poll_cycles WHERE finished_at < $1;`
)

// Store is the PostgreSQL backend.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// GetPreference returns the stored value and whether it exists.
func (s *Store) GetPreference(ctx context.Context, key string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}

	var value string
	if scanErr := pool.QueryRow(ctx, getPreferenceSQL, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference: %w", scanErr)
	}
	return value, true, nil
}

// SetPreference inserts or replaces a preference.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertPreferenceSQL, key, value); execErr != nil {
		return fmt.Errorf("set preference: %w", execErr)
	}
	return nil
}

// RecordCycle appends a cycle to the journal.
func (s *Store) RecordCycle(ctx context.Context, rec CycleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	unavailable := rec.Unavailable
	if unavailable == nil {
		unavailable = []string{}
	}

	var errMsg interface{}
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	_, execErr := pool.Exec(ctx, insertCycleSQL,
		rec.ID.String(),
		int64(rec.Seq),
		rec.RangeHours,
		rec.StartedAt,
		rec.FinishedAt,
		rec.Outcome,
		unavailable,
		rec.HistoryCount,
		rec.ConsumptionCount,
		rec.MonthlyCount,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("record cycle: %w", execErr)
	}
	return nil
}

// ListRecentCycles lists the most recent cycles, newest first.
func (s *Store) ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentCyclesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	defer rows.Close()

	records := make([]CycleRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteCyclesBefore prunes old journal entries.
func (s *Store) DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteCyclesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete cycles before: %w", execErr)
	}
	return nil
}

func scanCycle(rows pgx.Rows) (CycleRecord, error) {
	var (
		id          string
		seq         int64
		rec         CycleRecord
		unavailable []string
		errMsg      sql.NullString
	)

	if err := rows.Scan(
		&id,
		&seq,
		&rec.RangeHours,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.Outcome,
		&unavailable,
		&rec.HistoryCount,
		&rec.ConsumptionCount,
		&rec.MonthlyCount,
		&errMsg,
	); err != nil {
		return CycleRecord{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("parse cycle id: %w", err)
	}
	rec.ID = parsed
	rec.Seq = uint64(seq)
	rec.Unavailable = unavailable
	if errMsg.Valid {
		msg := errMsg.String
		rec.Error = &msg
	}
	return rec, nil
}

var _ Backend = (*Store)(nil)
