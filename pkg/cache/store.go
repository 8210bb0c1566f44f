package cache

import (
	"context"
	"time"

	"github.com/pario-ai/narrator/pkg/models"
)

// Store is an optional second cache tier that outlives the process.
// Implementations live in the sqlite and redis subpackages.
type Store interface {
	// Get returns the entry for key. Expired entries are reported as misses.
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	// Put stores entry, expiring it ttl after entry.CreatedAt.
	Put(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error
	// Clear removes entries. If expiredOnly is true, only expired entries are removed.
	Clear(ctx context.Context, expiredOnly bool) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
