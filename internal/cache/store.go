package cache

import (
	"context"
	"time"
)

// Entry is a stored JSON value with its expiry time.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is a backing key/value store for the Cache.
type Store interface {
	// Get returns the entry for key and whether it was present.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Set stores the entry, replacing any previous value.
	Set(ctx context.Context, key string, entry Entry) error
	// Delete removes a key.
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
	// Sweep removes entries expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// Len returns the number of stored keys.
	Len(ctx context.Context) (int, error)
	// Name identifies the backend in stats and logs.
	Name() string
	Close() error
}
