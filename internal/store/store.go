// Package store provides key-value storage backends for tutor memory.
//
// Values are opaque strings (the memory package stores JSON). Backends are an
// in-memory map, Redis, SQLite and PostgreSQL; Open picks one from a DSN.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrNoDSN is returned by Open when no connection string was given.
var ErrNoDSN = errors.New("store DSN not set")

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DSNType identifies a backend family.
type DSNType string

const (
	DSNTypeRedis    DSNType = "redis"
	DSNTypePostgres DSNType = "postgres"
	DSNTypeSQLite   DSNType = "sqlite"
)

// Opts holds configuration for persistent stores.
type Opts struct {
	DSN string
	// TTL expires keys this long after their last write. Zero keeps them forever.
	TTL time.Duration
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisURL sets a redis:// or rediss:// URL.
func WithRedisURL(url string) Option { return WithDSN(url) }

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option { return WithDSN(dsn) }

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(path string) Option { return WithDSN(path) }

// WithTTL sets the key expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		if ttl > 0 {
			o.TTL = ttl
		}
	}
}

// DetectDSNType guesses the backend from the connection string.
func DetectDSNType(dsn string) DSNType {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return DSNTypeRedis
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// Open connects to the backend selected by the DSN.
func Open(ctx context.Context, opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrNoDSN
	}

	kind := DetectDSNType(cfg.DSN)
	slog.Debug("store.Open: opening store", "type", kind, "ttl", cfg.TTL)
	switch kind {
	case DSNTypeRedis:
		return NewRedisStore(ctx, opts...)
	case DSNTypePostgres:
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// Purger is implemented by stores that can drop expired keys in bulk.
// Redis expires keys itself and does not implement it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type memEntry struct {
	value   string
	expires time.Time
}

// InMemoryStore is a mutex-guarded map. It is used in tests and when no
// persistent backend is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore{entries: make(map[string]memEntry), ttl: cfg.TTL, now: time.Now}
}

// Get implements Store.
func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store.
func (s *InMemoryStore) Set(ctx context.Context, key, value string) error {
	e := memEntry{value: value}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }

// PurgeExpired drops every expired key.
func (s *InMemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func expiryFor(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return time.Now().UTC().Add(ttl)
}

func wrapErr(op, key string, err error) error {
	return fmt.Errorf("store %s %q: %w", op, key, err)
}
