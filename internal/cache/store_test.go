package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"city-planner/backend/internal/logging"
)

// exerciseStore runs the behavior every Store must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Set and Get", func(t *testing.T) {
		err := store.Set(ctx, "weather:city:paris", Entry{Value: []byte(`{"temp":21.5}`), ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)

		e, ok, err := store.Get(ctx, "weather:city:paris")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"temp":21.5}`, string(e.Value))
		assert.True(t, e.ExpiresAt.Equal(now.Add(time.Hour)))
	})

	t.Run("Get missing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Sweep removes expired", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "stale", Entry{Value: []byte(`1`), ExpiresAt: now.Add(30 * time.Second)}))

		n, err := store.Sweep(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, ok, err := store.Get(ctx, "stale")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete and Clear", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "a", Entry{Value: []byte(`"a"`), ExpiresAt: now.Add(time.Hour)}))
		require.NoError(t, store.Delete(ctx, "a"))
		_, ok, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Clear(ctx))
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, store.Migrate(ctx))

	exerciseStore(t, store)

	t.Run("OpenStore", func(t *testing.T) {
		s := OpenStore(ctx, "postgres", connStr, "test", logging.Nop())
		defer s.Close()
		assert.Equal(t, "postgres", s.Name())
	})
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	url, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatal(err)
	}

	store, err := DialRedis(ctx, url, "test")
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	t.Run("keys are namespaced", func(t *testing.T) {
		other, err := DialRedis(ctx, url, "other")
		require.NoError(t, err)
		defer other.Close()

		require.NoError(t, store.Set(ctx, "k", Entry{Value: []byte(`1`), ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, other.Clear(ctx))

		_, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("OpenStore", func(t *testing.T) {
		s := OpenStore(ctx, "redis", url, "test", logging.Nop())
		defer s.Close()
		assert.Equal(t, "redis", s.Name())
	})
}

func TestOpenStoreDegradesToMemory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		backend string
		dsn     string
	}{
		{"unreachable redis", "redis", "redis://127.0.0.1:1/0"},
		{"bad redis url", "redis", "::not a url"},
		{"unreachable postgres", "postgres", "postgres://user:pw@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"},
		{"unknown backend", "etcd", ""},
		{"memory", "memory", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := OpenStore(ctx, tt.backend, tt.dsn, "test", logging.Nop())
			defer s.Close()
			assert.Equal(t, "memory", s.Name())
		})
	}
}
