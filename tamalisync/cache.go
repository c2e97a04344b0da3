// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultCacheTTL matches the original client's one-hour read cache.
const DefaultCacheTTL = time.Hour

// CacheEntry is one cached read response.
type CacheEntry struct {
	Key       string
	Data      json.RawMessage
	StoredAt  time.Time
	ExpiresAt time.Time
}

// SetCache stores (or replaces) the cached response for key with the given TTL.
func (s *Store) SetCache(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := s.now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, data, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data,
			stored_at = excluded.stored_at, expires_at = excluded.expires_at
	`, key, string(data), now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// GetCache returns the cached response for key. An entry past its expiry is
// treated as absent and evicted. A read failure degrades to a cache miss.
func (s *Store) GetCache(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var data string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT data, expires_at FROM cache WHERE key = ?
	`, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if s.now().UnixMilli() > expiresAt {
		if err := s.RemoveCache(ctx, key); err != nil {
			s.logger.Warn("failed to evict expired cache entry", "key", key, "error", err)
		}
		return nil, false, nil
	}
	return json.RawMessage(data), true, nil
}

// RemoveCache deletes the cache entry for key.
func (s *Store) RemoveCache(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// InvalidateCachePrefix deletes every cache entry whose key starts with
// prefix. Used after a mutation succeeds to drop the listings it staled
// (pagination suffixes included).
func (s *Store) InvalidateCachePrefix(ctx context.Context, prefix string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE key = ? OR key LIKE ? || '%'`, prefix, prefix)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache prefix %s: %w", prefix, err)
	}
	return nil
}

// InvalidateCacheContaining deletes every cache entry whose key contains
// substr. Used when the mutation route does not carry enough scope to name
// the exact listing key (e.g. stock movements know only the product id).
func (s *Store) InvalidateCacheContaining(ctx context.Context, substr string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE key LIKE '%' || ? || '%'`, substr)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache entries containing %s: %w", substr, err)
	}
	return nil
}

// ClearExpiredCache evicts every entry past its expiry.
func (s *Store) ClearExpiredCache(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at < ?`, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clear expired cache: %w", err)
	}
	return nil
}

// ClearCache empties the cache collection.
func (s *Store) ClearCache(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
