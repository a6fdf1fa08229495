package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// OpenBackend connects the configured store driver. Postgres migrations run first.
// The returned func releases the connection.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (Backend, func(), error) {
	backend := Backend{Driver: cfg.StoreDriver}
	switch cfg.StoreDriver {
	case DriverPostgres:
		version, err := db.Migrate(cfg.PGDSN)
		if err != nil {
			return backend, nil, err
		}
		logger.Info("database migrated", slog.Uint64("version", uint64(version)))
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{
			MaxConns:        cfg.PGMaxConns,
			MinConns:        cfg.PGMinConns,
			MaxConnLifetime: cfg.PGMaxConnLifetime,
		})
		if err != nil {
			return backend, nil, err
		}
		backend.Pool = pool
		return backend, pool.Close, nil
	case DriverSQLite:
		gdb, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return backend, nil, err
		}
		backend.Gorm = gdb
		return backend, func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	case DriverMemory:
		logger.Warn("memory store selected, records are lost on exit")
		return backend, func() {}, nil
	default:
		return backend, nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenRedis connects to redis when enabled. An unreachable server is logged and
// reported as a nil client so the API keeps serving without redis features.
func OpenRedis(ctx context.Context, cfg *Config, logger *slog.Logger) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}
	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", slog.Any("error", err))
		return nil
	}
	return client
}

// AsynqOptions returns the asynq connection matching the redis settings.
func (c *Config) AsynqOptions() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
