package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded store used when STORE_DRIVER=sqlite. Decimal
// columns are stored as TEXT so values round-trip without loss.
type SQLite struct {
	DB *sql.DB
}

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS hospital (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		federated_state TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS app_user (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		hospital_id TEXT,
		roles TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);`,
	`CREATE TABLE IF NOT EXISTS kpi_series (
		id TEXT PRIMARY KEY,
		hospital_id TEXT NOT NULL,
		department TEXT NOT NULL,
		metric TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		target TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (hospital_id, department, metric)
	);`,
	`CREATE TABLE IF NOT EXISTS kpi_point (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		series_id TEXT NOT NULL REFERENCES kpi_series(id),
		recorded_at TIMESTAMP NOT NULL,
		value TEXT NOT NULL,
		note TEXT,
		submitted_by TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE INDEX IF NOT EXISTS idx_kpi_point_series ON kpi_point(series_id, seq);`,
	`CREATE INDEX IF NOT EXISTS idx_kpi_series_hospital ON kpi_series(hospital_id);`,
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Writes are serialized through a single connection.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return &SQLite{DB: conn}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLite) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// WithTx runs fn inside a database/sql transaction, committing only if fn
// returns nil.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
