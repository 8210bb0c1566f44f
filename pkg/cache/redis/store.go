// Package redis provides a shared second cache tier so several narrator
// processes reuse each other's responses.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pario-ai/narrator/pkg/models"
)

// Store keeps cache entries in Redis with a native expiry.
type Store struct {
	client *redis.Client
	prefix string
}

type record struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Options configures a Redis store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Store{client: client, prefix: opts.Prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the entry for key. A missing key is a miss, not an error.
func (s *Store) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}
	e, err := decode(key, val)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	return e, true, nil
}

// Put stores entry with an expiry of ttl measured from its creation time.
func (s *Store) Put(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error {
	remaining := time.Until(entry.CreatedAt.Add(ttl))
	if remaining <= 0 {
		return nil
	}
	data, err := encode(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(entry.Key), data, remaining).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Count returns the number of keys under the store prefix.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// Clear deletes every key under the store prefix. Redis expires entries
// natively, so an expired-only clear has nothing to do.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	if expiredOnly {
		return nil
	}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func encode(e models.CacheEntry) (string, error) {
	data, err := json.Marshal(record{Value: e.Value, CreatedAt: e.CreatedAt})
	if err != nil {
		return "", fmt.Errorf("encode cache entry: %w", err)
	}
	return string(data), nil
}

func decode(key, val string) (models.CacheEntry, error) {
	var r record
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return models.CacheEntry{Key: key, Value: r.Value, CreatedAt: r.CreatedAt, LastUsedAt: r.CreatedAt}, nil
}
