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

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps values in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens (and creates if needed) the SQLite file named by the DSN.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrNoDSN
	}

	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("SQLiteStore.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: open failed", "error", err)
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: ping failed", "error", err)
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to run migrations", "error", err)
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied", "dsn", dsn)

	return &SQLiteStore{db: db, ttl: cfg.TTL}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM chat_memory WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore Get failed", "error", err, "key", key)
		return "", false, wrapErr("get", key, err)
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_memory WHERE key = ?`, key); err != nil {
			slog.Warn("SQLiteStore Get: failed to drop expired key", "error", err, "key", key)
		}
		return "", false, nil
	}
	return value, true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO chat_memory (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = CURRENT_TIMESTAMP`,
		key, value, expiryFor(s.ttl))
	if err != nil {
		slog.Error("SQLiteStore Set failed", "error", err, "key", key)
		return wrapErr("set", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_memory WHERE key = ?`, key); err != nil {
		return wrapErr("delete", key, err)
	}
	return nil
}

// PurgeExpired removes rows whose TTL has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_memory WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
