package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// fixed width so that text comparison orders chronologically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA busy_timeout = 5000;",
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS poll_cycles (
    id                TEXT PRIMARY KEY,
    seq               INTEGER NOT NULL,
    range_hours       INTEGER NOT NULL,
    started_at        TEXT NOT NULL,
    finished_at       TEXT NOT NULL,
    outcome           TEXT NOT NULL,
    unavailable       TEXT NOT NULL DEFAULT '',
    history_count     INTEGER NOT NULL DEFAULT 0,
    consumption_count INTEGER NOT NULL DEFAULT 0,
    monthly_count     INTEGER NOT NULL DEFAULT 0,
    error             TEXT
);`,
	`CREATE INDEX IF NOT EXISTS poll_cycles_finished_at_idx ON poll_cycles (finished_at);`,
}

const (
	sqliteGetPreference = `SELECT value FROM preferences WHERE key = ?`

	sqliteUpsertPreference = `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	sqliteInsertCycle = `INSERT INTO poll_cycles (id, seq, range_hours, started_at, finished_at, outcome, unavailable, history_count, consumption_count, monthly_count, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteListRecentCycles = `SELECT id, seq, range_hours, started_at, finished_at, outcome, unavailable, history_count, consumption_count, monthly_count, error
FROM poll_cycles ORDER BY finished_at DESC LIMIT ?`

	sqliteDeleteCyclesBefore = `DELETE FROM poll_cycles WHERE finished_at < ?`
)

// SQLiteStore is the local single-file backend.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// OpenSQLite opens or creates the database file at path and ensures the
// schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// a single writer avoids SQLITE_BUSY under the poller and HTTP handlers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	store := NewSQLiteStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sqlite schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// GetPreference returns the stored value and whether it exists.
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return "", false, err
	}

	var value string
	if scanErr := db.QueryRowContext(ctx, sqliteGetPreference, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference: %w", scanErr)
	}
	return value, true, nil
}

// SetPreference inserts or replaces a preference.
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	updated := s.now().UTC().Format(sqliteTimeLayout)
	if _, execErr := db.ExecContext(ctx, sqliteUpsertPreference, key, value, updated); execErr != nil {
		return fmt.Errorf("set preference: %w", execErr)
	}
	return nil
}

// RecordCycle appends a cycle to the journal.
func (s *SQLiteStore) RecordCycle(ctx context.Context, rec CycleRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	var errMsg interface{}
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	_, execErr := db.ExecContext(ctx, sqliteInsertCycle,
		rec.ID.String(),
		int64(rec.Seq),
		rec.RangeHours,
		rec.StartedAt.UTC().Format(sqliteTimeLayout),
		rec.FinishedAt.UTC().Format(sqliteTimeLayout),
		rec.Outcome,
		strings.Join(rec.Unavailable, ","),
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
func (s *SQLiteStore) ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, sqliteListRecentCycles, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	defer rows.Close()

	records := make([]CycleRecord, 0, limit)
	for rows.Next() {
		var (
			id, started, finished, unavailable string
			seq                                int64
			errMsg                             sql.NullString
			rec                                CycleRecord
		)
		if err := rows.Scan(&id, &seq, &rec.RangeHours, &started, &finished, &rec.Outcome,
			&unavailable, &rec.HistoryCount, &rec.ConsumptionCount, &rec.MonthlyCount, &errMsg); err != nil {
			return nil, err
		}

		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse cycle id: %w", err)
		}
		if rec.StartedAt, err = time.Parse(sqliteTimeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if rec.FinishedAt, err = time.Parse(sqliteTimeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		rec.Seq = uint64(seq)
		if unavailable != "" {
			rec.Unavailable = strings.Split(unavailable, ",")
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteCyclesBefore prunes old journal entries.
func (s *SQLiteStore) DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	cutoff := olderThan.UTC().Format(sqliteTimeLayout)
	if _, execErr := db.ExecContext(ctx, sqliteDeleteCyclesBefore, cutoff); execErr != nil {
		return fmt.Errorf("delete cycles before: %w", execErr)
	}
	return nil
}

var _ Backend = (*SQLiteStore)(nil)
