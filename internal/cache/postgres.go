package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table used by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS cache_entries_expires_at_idx ON cache_entries (expires_at);`

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// DialPostgres connects to dsn, pings the server and applies Schema.
func DialPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the cache table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Get retrieves an entry by its key.
func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRow(ctx, "SELECT value, expires_at FROM cache_entries WHERE key = $1", key).Scan(&e.Value, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Set upserts an entry.
func (s *PostgresStore) Set(ctx context.Context, key string, entry Entry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cache_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, string(entry.Value), entry.ExpiresAt)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM cache_entries WHERE key = $1", key)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "DELETE FROM cache_entries")
	return err
}

// Sweep deletes rows that expired before now.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM cache_entries WHERE expires_at < $1", now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM cache_entries").Scan(&n)
	return n, err
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
