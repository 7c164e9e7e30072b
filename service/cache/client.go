// Package cache holds the Redis read-through cache for query results. Every
// committed operation bumps a generation counter, which retires all cached
// entries at once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by a Backend for an absent key.
var ErrMiss = errors.New("cache miss")

// Backend is the key-value surface the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisBackend implements Backend with go-redis.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, cfg ClientConfig) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisBackend{rdb: rdb}, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, nil
}

// Set implements Backend.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Incr implements Backend.
func (b *RedisBackend) Incr(ctx context.Context, key string) (int64, error) {
	n, err := b.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr %s: %w", key, err)
	}
	return n, nil
}

// Claim sets a signature marker with SETNX and reports whether this call set
// it. It implements auth.ReplayGuard for servers that share one Redis.
func (b *RedisBackend) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, "solxr:sig:"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim signature: %w", err)
	}
	return ok, nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
