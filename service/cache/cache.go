package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/solxr/service/metrics"
)

const (
	// DefaultTTL bounds how long an entry survives without an invalidation.
	DefaultTTL = 30 * time.Second

	generationKey = "solxr:generation"
)

// QueryCache caches JSON query results under the current generation.
// Cache failures never fail a query; they fall through to the loader.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a QueryCache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{backend: backend, ttl: ttl, metrics: m, logger: logger}
}

func (c *QueryCache) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(result)
	}
}

func (c *QueryCache) generation(ctx context.Context) (string, error) {
	data, err := c.backend.Get(ctx, generationKey)
	if errors.Is(err, ErrMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Fetch returns the cached value of key, or calls load and caches its result.
// A nil cache always calls load.
func Fetch[T any](ctx context.Context, c *QueryCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.record("error")
		c.logger.WarnContext(ctx, "cache unavailable", "key", key, "error", err)
		return load(ctx)
	}
	fullKey := "solxr:" + gen + ":" + key

	data, err := c.backend.Get(ctx, fullKey)
	if err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.record("hit")
			return v, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", fullKey)
	} else if !errors.Is(err, ErrMiss) {
		c.record("error")
		c.logger.WarnContext(ctx, "cache read failed", "key", fullKey, "error", err)
		return load(ctx)
	}

	c.record("miss")
	v, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if data, err := json.Marshal(v); err == nil {
		if err := c.backend.Set(ctx, fullKey, data, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", "key", fullKey, "error", err)
		}
	}
	return v, nil
}

// Invalidate retires every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if _, err := c.backend.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Key joins parts into a cache key.
func Key(parts ...any) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		switch v := p.(type) {
		case string:
			key += v
		case uint64:
			key += strconv.FormatUint(v, 10)
		default:
			key += fmt.Sprint(v)
		}
	}
	return key
}
