package gateway

import (
	"context"
	"fmt"

	"github.com/pario-ai/narrator/pkg/cache"
	"github.com/pario-ai/narrator/pkg/cache/redis"
	"github.com/pario-ai/narrator/pkg/cache/sqlite"
	"github.com/pario-ai/narrator/pkg/config"
)

// OpenStore opens the second cache tier named by cfg. It returns nil, nil
// when no store is configured.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (cache.Store, error) {
	switch cfg.Type {
	case "", config.StoreNone:
		return nil, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreRedis:
		s, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache store %q", cfg.Type)
	}
}
