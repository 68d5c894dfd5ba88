package memory

import (
	"context"
	"sync"

	"recipeharvest/internal/nutrition"
)

// NutritionCache is an in-memory ingredient cache. Entries for older
// schema versions are invisible to readers, matching the persistent
// cache's versioned-key behavior.
type NutritionCache struct {
	mu      sync.RWMutex
	entries map[string]nutrition.CacheEntry
}

// NewNutritionCache constructs a NutritionCache.
func NewNutritionCache() *NutritionCache {
	return &NutritionCache{entries: make(map[string]nutrition.CacheEntry)}
}

// Get returns the cached entry for a term at the current schema version.
func (c *NutritionCache) Get(_ context.Context, term string) (nutrition.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[term]
	if !ok || entry.SchemaVersion != nutrition.SchemaVersion {
		return nutrition.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put stores an entry, overwriting any previous version for the term.
func (c *NutritionCache) Put(_ context.Context, entry nutrition.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Term] = entry
	return nil
}
