// Package cache provides a TTL cache with swappable backing stores.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"city-planner/backend/internal/logging"
)

// TTLs used by callers.
const (
	TTLOffers    = 30 * time.Minute
	TTLHotelList = 24 * time.Hour
	TTLDefault   = time.Hour

	DefaultSweepInterval = 5 * time.Minute
)

// Cache is a cache-aside layer over a Store. Expiry is judged by the
// cache's clock, not the store's.
type Cache struct {
	store  Store
	now    func() time.Time
	logger *logging.Logger

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a Cache backed by store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		now:    time.Now,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter("city-planner/backend/internal/cache")
	c.hits, _ = meter.Int64Counter("cache.hits", metric.WithDescription("Cache reads that found a fresh entry"))
	c.misses, _ = meter.Int64Counter("cache.misses", metric.WithDescription("Cache reads that found nothing or an expired entry"))
	return c
}

// Backend returns the name of the backing store.
func (c *Cache) Backend() string {
	return c.store.Name()
}

// Get decodes the value for key into dst. Expired entries are evicted and
// reported as absent.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	attrs := metric.WithAttributes(attribute.String("backend", c.store.Name()))

	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if !ok {
		c.misses.Add(ctx, 1, attrs)
		return false, nil
	}
	if e.Expired(c.now()) {
		c.misses.Add(ctx, 1, attrs)
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to evict expired cache entry", "key", key, "error", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(e.Value, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	c.hits.Add(ctx, 1, attrs)
	return true, nil
}

// Set stores value as JSON with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, Entry{Value: raw, ExpiresAt: c.now().Add(ttl)}); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Sweep removes expired entries from the store.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx, c.now())
}

// Stats describes the cache contents.
type Stats struct {
	Backend string `json:"backend"`
	Keys    int    `json:"keys"`
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	n, err := c.store.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cache keys: %w", err)
	}
	return Stats{Backend: c.store.Name(), Keys: n}, nil
}

// StartSweeper sweeps expired entries every interval until ctx is done.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.Sweep(ctx)
				if err != nil {
					c.logger.Warn("cache sweep failed", "backend", c.store.Name(), "error", err)
					continue
				}
				if n > 0 {
					c.logger.Debug("swept expired cache entries", "count", n)
				}
			}
		}
	}()
}

func (c *Cache) Close() error {
	return c.store.Close()
}

// GetOrSet returns the cached value for key or calls supplier and caches
// its result. Supplier errors are returned and never cached. Concurrent
// misses on the same key may each call supplier.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, supplier func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := c.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("cache read failed, calling supplier", "key", key, "error", err)
	}
	if found {
		return cached, nil
	}

	v, err := supplier(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// Key builds a deterministic key: prefix followed by the params sorted by
// name, e.g. "flights:class:economy|destination:paris".
func Key(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s:%v", k, params[k])
	}
	return prefix + ":" + strings.Join(parts, "|")
}
