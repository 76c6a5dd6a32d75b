package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const kvSchema = `
	CREATE TABLE IF NOT EXISTS lifepulse_kv (
		store_key   TEXT PRIMARY KEY,
		store_value TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)
`

// SQLMedium stores every key as one row. The same queries run on SQLite and
// Postgres; sqlx rebinds the placeholders per driver.
type SQLMedium struct {
	db *sqlx.DB
}

// OpenSQLMedium connects with driver ("sqlite" or "postgres") and creates
// the table when missing.
func OpenSQLMedium(ctx context.Context, driver, dsn string) (*SQLMedium, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	// SQLite allows a single writer.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	m, err := NewSQLMedium(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func NewSQLMedium(ctx context.Context, db *sqlx.DB) (*SQLMedium, error) {
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &SQLMedium{db: db}, nil
}

func (m *SQLMedium) Get(ctx context.Context, key string) (string, error) {
	query := m.db.Rebind(`SELECT store_value FROM lifepulse_kv WHERE store_key = ?`)

	var value string
	if err := m.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (m *SQLMedium) Set(ctx context.Context, key, value string) error {
	query := m.db.Rebind(`
		INSERT INTO lifepulse_kv (store_key, store_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (store_key) DO UPDATE
		SET store_value = excluded.store_value,
			updated_at = excluded.updated_at
	`)

	if _, err := m.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (m *SQLMedium) Usage(ctx context.Context, prefix string) (int64, error) {
	query := m.db.Rebind(`
		SELECT COALESCE(SUM(LENGTH(store_value)), 0)
		FROM lifepulse_kv
		WHERE SUBSTR(store_key, 1, ?) = ?
	`)

	var used int64
	if err := m.db.GetContext(ctx, &used, query, len(prefix), prefix); err != nil {
		return 0, fmt.Errorf("failed to compute usage: %w", err)
	}
	return used, nil
}

func (m *SQLMedium) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLMedium) Close() error {
	return m.db.Close()
}
