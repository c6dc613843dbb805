package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"npbc-dashboard/internal/config"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
)

// PreferenceStore keeps small string preferences such as the theme.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
}

// CycleJournal keeps a history of finished poll cycles for offline
// debugging.
type CycleJournal interface {
	RecordCycle(ctx context.Context, rec CycleRecord) error
	ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error
}

// Backend is a store offering both preferences and the cycle journal.
type Backend interface {
	PreferenceStore
	CycleJournal
	Close()
}

// Open selects PostgreSQL when a DSN is configured and the local SQLite
// file otherwise. The schema is created if missing.
func Open(ctx context.Context, db config.DatabaseConfig, lite config.SQLiteConfig) (Backend, error) {
	if db.DSN != "" {
		pool, err := NewPool(ctx, db)
		if err != nil {
			return nil, err
		}
		store := NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}

	if lite.Path == "" {
		return nil, ErrNotConfigured
	}
	return OpenSQLite(ctx, lite.Path)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
