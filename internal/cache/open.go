package cache

import (
	"context"
	"time"

	"city-planner/backend/internal/logging"
)

const dialTimeout = 5 * time.Second

// OpenStore connects to the requested backend. An unreachable or unknown
// backend logs a warning and yields a MemoryStore; it never fails.
func OpenStore(ctx context.Context, backend, dsn, prefix string, logger *logging.Logger) Store {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	switch backend {
	case "redis":
		s, err := DialRedis(ctx, dsn, prefix)
		if err != nil {
			logger.Warn("redis not available, using in-memory cache", "error", err)
			return NewMemoryStore()
		}
		logger.Info("connected to redis cache")
		return s
	case "postgres":
		s, err := DialPostgres(ctx, dsn)
		if err != nil {
			logger.Warn("postgres not available, using in-memory cache", "error", err)
			return NewMemoryStore()
		}
		logger.Info("connected to postgres cache")
		return s
	case "", "memory":
		logger.Info("using in-memory cache")
		return NewMemoryStore()
	default:
		logger.Warn("unknown cache backend, using in-memory cache", "backend", backend)
		return NewMemoryStore()
	}
}
