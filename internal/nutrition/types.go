// Package nutrition implements ingredient analysis: free-text parsing,
// unit normalization, provider lookups with caching, and weighted
// aggregation across an ingredient list.
package nutrition

import (
	"context"
	"errors"

	"recipeharvest/internal/recipe"
)

// ErrNotFound is returned by providers when a search yields no usable food.
var ErrNotFound = errors.New("nutrition: not found")

// Portion is a provider-supplied named serving with an explicit gram
// weight, e.g. "1 cup" = 128 g. When the parsed unit matches a portion's
// measure text the exact weight overrides generic unit conversion.
type Portion struct {
	Measure string  `json:"measure"`
	Grams   float64 `json:"grams"`
}

// NutrientRecord is the canonical per-provider record, normalized before
// aggregation. Values are defined per ServingSizeG reference grams.
type NutrientRecord struct {
	Description  string           `json:"description,omitempty"`
	Nutrition    recipe.Nutrition `json:"nutrition"`
	ServingSizeG float64          `json:"serving_size_g"`
	Portions     []Portion        `json:"portions,omitempty"`
}

// Provider queries one external nutrition database.
type Provider interface {
	Name() string
	Search(ctx context.Context, term string) (NutrientRecord, error)
}

// SchemaVersion is the current nutrient record schema. Stored alongside
// the cache term so record-shape evolution invalidates old entries.
const SchemaVersion = 9

// CacheEntry maps a cleaned search term to a cached nutrient record and
// the provider that produced it.
type CacheEntry struct {
	Term          string         `json:"term"`
	SchemaVersion int            `json:"schema_version"`
	Record        NutrientRecord `json:"record"`
	Source        string         `json:"source"`
}

// Cache stores nutrient records keyed by (term, schema version).
// Concurrent writers to the same key are last-write-wins; values are
// derived, not authoritative, state.
type Cache interface {
	Get(ctx context.Context, term string) (CacheEntry, bool, error)
	Put(ctx context.Context, entry CacheEntry) error
}

// ParsedWeight reports how an ingredient line resolved to grams.
type ParsedWeight struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	WeightGrams float64 `json:"weight_grams"`
}

// LineResult is one breakdown entry of an analysis.
type LineResult struct {
	Ingredient string            `json:"ingredient"`
	Status     string            `json:"status,omitempty"`
	Parsed     *ParsedWeight     `json:"parsed,omitempty"`
	Stats      *recipe.Nutrition `json:"stats,omitempty"`
	Source     string            `json:"source,omitempty"`
}

// StatusNotFound marks a line no provider could resolve; it contributes
// zero to totals.
const StatusNotFound = "not_found"

// Analysis is the result of analyzing an ordered ingredient list.
type Analysis struct {
	Total     recipe.Nutrition `json:"total"`
	Breakdown []LineResult     `json:"breakdown"`
}
