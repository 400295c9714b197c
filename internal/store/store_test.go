package store

import (
	"context"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := s.Set(ctx, "chat_memory:a", `{"summary":"x"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "chat_memory:a")
	if err != nil || !ok || v != `{"summary":"x"}` {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	if err := s.Set(ctx, "chat_memory:a", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Get(ctx, "chat_memory:a"); v != "second" {
		t.Errorf("overwrite not visible, got %q", v)
	}
	if err := s.Delete(ctx, "chat_memory:a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "chat_memory:a"); ok {
		t.Error("key still present after Delete")
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStore_TTL(t *testing.T) {
	s := NewInMemoryStore(WithTTL(time.Minute))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Error("key expired too early")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key should have expired")
	}
	if len(s.entries) != 0 {
		t.Error("expired key should be dropped on read")
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "memory.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "memory.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Set(context.Background(), "k", "persisted"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(context.Background(), "k")
	if err != nil || !ok || v != "persisted" {
		t.Errorf("after reopen got %q %v %v", v, ok, err)
	}
}

func TestSQLiteStore_ExpiredKeyIsHidden(t *testing.T) {
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "m.db")), WithTTL(time.Millisecond))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Errorf("expected expired key to be hidden, ok=%v err=%v", ok, err)
	}
}

func TestInMemoryStore_PurgeExpired(t *testing.T) {
	s := NewInMemoryStore(WithTTL(time.Minute))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Set(ctx, "old", "v")
	now = now.Add(2 * time.Minute)
	s.Set(ctx, "fresh", "v")

	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v; want 1", n, err)
	}
	if len(s.entries) != 1 {
		t.Errorf("Len = %d, want 1", len(s.entries))
	}
}

func TestSQLiteStore_PurgeExpired(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "m.db")
	short, err := NewSQLiteStore(WithSQLiteDSN(dsn), WithTTL(time.Millisecond))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer short.Close()
	ctx := context.Background()
	if err := short.Set(ctx, "gone", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := short.Set(ctx, "also-gone", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	n, err := short.PurgeExpired(ctx)
	if err != nil || n != 2 {
		t.Errorf("PurgeExpired = %d, %v; want 2", n, err)
	}
	var _ Purger = short
}

func TestDetectDSNType(t *testing.T) {
	tests := map[string]DSNType{
		"redis://localhost:6379/0":                  DSNTypeRedis,
		"rediss://user:pw@cache:6380":               DSNTypeRedis,
		"postgres://u:p@db/amooz?sslmode=disable":   DSNTypePostgres,
		"postgresql://db/amooz":                     DSNTypePostgres,
		"host=localhost dbname=amooz sslmode=false": DSNTypePostgres,
		"/var/lib/amooz/memory.db":                  DSNTypeSQLite,
		"memory.db":                                 DSNTypeSQLite,
	}
	for dsn, want := range tests {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestOpen_NoDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrNoDSN) {
		t.Errorf("expected ErrNoDSN, got %v", err)
	}
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), WithDSN(filepath.Join(t.TempDir(), "open.db")))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", s)
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance reachable through DATABASE_URL.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM chat_memory WHERE key LIKE 'chat_memory:%'")
	exerciseStore(t, pgStore)
}

func TestRedisStore(t *testing.T) {
	// Requires a running Redis reachable through REDIS_URL.
	url := getenvOrSkip(t, "REDIS_URL")
	rs, err := NewRedisStore(context.Background(), WithRedisURL(url), WithTTL(time.Minute))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer rs.Close()
	exerciseStore(t, rs)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), WithRedisURL("not-a-url")); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
