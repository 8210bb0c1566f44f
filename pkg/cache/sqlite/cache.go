package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/narrator/pkg/models"
)

// Store is a persistent second cache tier backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_used_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Get retrieves a cached entry. Expired entries are reported as misses.
func (s *Store) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var value string
	var createdAt, lastUsedAt, expiresAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT value, created_at, last_used_at, expires_at FROM cache_entries WHERE key = ?`,
		key,
	).Scan(&value, &createdAt, &lastUsedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}

	if s.now().UnixMilli() >= expiresAt {
		return models.CacheEntry{}, false, nil
	}

	return models.CacheEntry{
		Key:        key,
		Value:      value,
		CreatedAt:  time.UnixMilli(createdAt).UTC(),
		LastUsedAt: time.UnixMilli(lastUsedAt).UTC(),
	}, true, nil
}

// Put stores an entry that expires ttl after its creation time.
func (s *Store) Put(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, value, created_at, last_used_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Key, entry.Value,
		entry.CreatedAt.UnixMilli(), entry.LastUsedAt.UnixMilli(),
		entry.CreatedAt.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Count returns the number of stored entries, expired or not.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return count, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	var err error
	if expiredOnly {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().UnixMilli())
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
