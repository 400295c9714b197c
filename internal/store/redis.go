package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in Redis with an optional per-key TTL.
type RedisStore struct {
	client *redis.Client
	opts   Opts
}

// NewRedisStore parses the redis URL, connects and pings the server.
func NewRedisStore(ctx context.Context, opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("RedisStore.NewRedisStore: invalid URL", "error", err)
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisStore.NewRedisStore: ping failed", "error", err, "addr", redisOpts.Addr)
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("RedisStore.NewRedisStore: connected", "addr", redisOpts.Addr, "ttl", cfg.TTL)
	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts ...Option) *RedisStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore{client: client, opts: cfg}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("get", key, err)
	}
	return val, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.opts.TTL).Err(); err != nil {
		return wrapErr("set", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapErr("delete", key, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
