package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

// Open returns the save store selected by cfg.StorageBackend. The Redis
// store is also returned on its own so callers can share its client.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, *RedisStore, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		rs, err := NewRedisStore(cfg.RedisURL, DefaultKeyPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := rs.WaitForConnection(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		return rs, rs, nil
	case config.BackendSQLite:
		ss, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return ss, nil, nil
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
