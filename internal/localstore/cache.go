package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
)

// CachePut stores value under key, replacing any previous value and timestamp.
func (s *Store) CachePut(ctx context.Context, key, collection string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return storageErr("cache put", fmt.Errorf("failed to encode value: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_data (key, collection, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			collection = excluded.collection,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, key, collection, string(data), s.now().UnixNano())
	if err != nil {
		return storageErr("cache put", fmt.Errorf("failed to upsert cache entry: %w", err))
	}
	return nil
}

// CacheGet returns the entry for key. A missing key reports ok=false with a
// nil error.
func (s *Store) CacheGet(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var (
		entry     models.CacheEntry
		data      string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, collection, data, updated_at FROM cached_data WHERE key = ?`, key,
	).Scan(&entry.Key, &entry.Collection, &data, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, storageErr("cache get", fmt.Errorf("failed to get cache entry: %w", err))
	}

	entry.Value = json.RawMessage(data)
	entry.UpdatedAt = time.Unix(0, updatedAt)
	return entry, true, nil
}
