package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/markdave123-py/Lectern/internal/models"
)

func (c *DatabaseClient) GetCacheEntry(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	const q = `
		SELECT cache_key, cache_value, expires_at, created_at
		FROM api_cache
		WHERE cache_key = $1 AND expires_at > $2
	`
	var (
		e     models.CacheEntry
		value []byte
	)
	err := c.db.QueryRowContext(ctx, q, key, now).Scan(&e.Key, &value, &e.ExpiresAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Value = json.RawMessage(value)
	return &e, nil
}

func (c *DatabaseClient) UpsertCacheEntry(ctx context.Context, key string, value json.RawMessage, expiresAt time.Time) error {
	const q = `
		INSERT INTO api_cache (cache_key, cache_value, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (cache_key) DO UPDATE
		SET cache_value = EXCLUDED.cache_value,
		    expires_at  = EXCLUDED.expires_at,
		    created_at  = now()
	`
	_, err := c.db.ExecContext(ctx, q, key, string(value), expiresAt)
	return err
}

func (c *DatabaseClient) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM api_cache WHERE cache_key = $1`, key)
	return err
}

func (c *DatabaseClient) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
