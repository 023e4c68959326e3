package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis under a key prefix. Keys carry a native
// TTL matching their expiry so Redis evicts them on its own.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis parses a redis:// URL, connects and pings the server.
func DialRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	if len(res) == 0 {
		return Entry{}, false, nil
	}
	exp, err := time.Parse(time.RFC3339Nano, res["expires_at"])
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to parse expiry for %s: %w", key, err)
	}
	return Entry{Value: []byte(res["value"]), ExpiresAt: exp}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	k := s.key(key)
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// Already expired by wall clock; keep it briefly so the cache clock decides.
		ttl = time.Second
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "value", entry.Value, "expires_at", entry.ExpiresAt.UTC().Format(time.RFC3339Nano))
		p.PExpire(ctx, k, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		raw, err := s.client.HGet(ctx, k, "expires_at").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}
		exp, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil || now.After(exp) {
			if err := s.client.Del(ctx, k).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	return len(keys), err
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}
