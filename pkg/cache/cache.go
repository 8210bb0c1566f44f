package cache

import (
	"cmp"
	"context"
	"log"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

// Cache is a TTL-bounded, capacity-bounded response cache keyed by Key.
// It is safe for concurrent use. The mutex is never held while talking to
// the optional Store.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*item
	seq      uint64
	ttl      time.Duration
	capacity int
	fraction float64
	sweep    time.Duration
	store    Store
	now      func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type item struct {
	entry models.CacheEntry
	seq   uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a second tier consulted on memory misses and written
// through on every Put.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache from cfg.
func New(cfg config.CacheConfig, opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*item),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		fraction: cfg.EvictFraction,
		sweep:    cfg.SweepInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	now := c.now()

	c.mu.Lock()
	it, ok := c.entries[key]
	if ok && c.expired(&it.entry, now) {
		delete(c.entries, key)
		ok = false
	}
	if ok {
		c.touchLocked(it, now)
		value := it.entry.Value
		c.mu.Unlock()
		c.hits.Add(1)
		return value, true
	}
	c.mu.Unlock()

	if c.store != nil {
		entry, found, err := c.store.Get(ctx, key)
		if err != nil {
			log.Printf("cache: store get: %v", err)
		}
		if found && !c.expired(&entry, now) {
			entry.LastUsedAt = now
			c.insert(entry)
			c.hits.Add(1)
			return entry.Value, true
		}
	}

	c.misses.Add(1)
	return "", false
}

// Put stores value under key, evicting a batch of the oldest entries
// when capacity is exceeded. Store errors are returned after the memory
// tier has been updated.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	now := c.now()
	entry := models.CacheEntry{Key: key, Value: value, CreatedAt: now, LastUsedAt: now}
	c.insert(entry)

	if c.store != nil {
		return c.store.Put(ctx, entry, c.ttl)
	}
	return nil
}

func (c *Cache) insert(entry models.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := &item{entry: entry}
	c.touchLocked(it, entry.LastUsedAt)
	c.entries[entry.Key] = it
	if len(c.entries) > c.capacity {
		c.evictLocked(c.now())
	}
}

// touchLocked marks it as the most recently used entry. seq orders
// entries whose LastUsedAt is equal.
func (c *Cache) touchLocked(it *item, now time.Time) {
	c.seq++
	it.seq = c.seq
	it.entry.LastUsedAt = now
}

func (c *Cache) expired(e *models.CacheEntry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= c.ttl
}

// evictLocked purges expired entries, then drops the oldest
// ceil(capacity*fraction) entries by last use.
func (c *Cache) evictLocked(now time.Time) {
	removed := c.purgeLocked(now)

	batch := int(math.Ceil(float64(c.capacity) * c.fraction))
	batch = max(batch, 1)

	victims := make([]*item, 0, len(c.entries))
	for _, it := range c.entries {
		victims = append(victims, it)
	}
	slices.SortFunc(victims, func(a, b *item) int {
		if n := a.entry.LastUsedAt.Compare(b.entry.LastUsedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, it := range victims[:min(batch, len(victims))] {
		delete(c.entries, it.entry.Key)
		removed++
	}
	c.evictions.Add(int64(removed))
}

func (c *Cache) purgeLocked(now time.Time) int {
	n := 0
	for k, it := range c.entries {
		if c.expired(&it.entry, now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Sweep removes expired entries from memory and reports how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	n := c.purgeLocked(now)
	c.mu.Unlock()
	c.evictions.Add(int64(n))
	return n
}

// Run sweeps expired entries on the configured interval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if c.sweep <= 0 {
		return
	}
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				log.Printf("cache: swept %d expired entries", n)
			}
		}
	}
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance metrics for the memory tier.
func (c *Cache) Stats() models.CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return models.CacheStats{
		Entries:   int64(c.Len()),
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
