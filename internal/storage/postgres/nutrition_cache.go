package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"recipeharvest/internal/nutrition"
)

// NutritionCache stores per-ingredient nutrient records keyed by
// cleaned term and schema version. Bumping the schema version orphans
// old rows instead of invalidating them in place.
type NutritionCache struct {
	pool dbPool
}

// NewNutritionCache creates a Postgres-backed NutritionCache.
func NewNutritionCache(ctx context.Context, cfg Config) (*NutritionCache, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &NutritionCache{pool: pool}, nil
}

// NewNutritionCacheWithPool constructs a cache from an existing pool
// (primarily for testing).
func NewNutritionCacheWithPool(pool dbPool) (*NutritionCache, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &NutritionCache{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (c *NutritionCache) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
}

// Get returns the cached entry for a term at the current schema version.
func (c *NutritionCache) Get(ctx context.Context, term string) (nutrition.CacheEntry, bool, error) {
	var (
		entry  nutrition.CacheEntry
		record []byte
	)
	err := c.pool.QueryRow(ctx,
		`SELECT term, schema_version, record, source FROM ingredient_cache WHERE term = $1 AND schema_version = $2`,
		term, nutrition.SchemaVersion,
	).Scan(&entry.Term, &entry.SchemaVersion, &record, &entry.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nutrition.CacheEntry{}, false, nil
	}
	if err != nil {
		return nutrition.CacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(record, &entry.Record); err != nil {
		return nutrition.CacheEntry{}, false, fmt.Errorf("unmarshal cache record: %w", err)
	}
	return entry, true, nil
}

// Put stores an entry. Concurrent writers to the same term are
// last-write-wins; cached values are derived, not authoritative.
func (c *NutritionCache) Put(ctx context.Context, entry nutrition.CacheEntry) error {
	record, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	query := `
INSERT INTO ingredient_cache (term, schema_version, record, source, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (term, schema_version) DO UPDATE SET
	record = EXCLUDED.record,
	source = EXCLUDED.source,
	updated_at = EXCLUDED.updated_at`
	if _, err := c.pool.Exec(ctx, query, entry.Term, entry.SchemaVersion, record, entry.Source, time.Now().UTC()); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
