package nutrition

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"recipeharvest/internal/metrics"
	"recipeharvest/internal/recipe"
)

// Engine orchestrates normalizer, cache and the ordered provider chain,
// then aggregates per-line contributions into running totals.
type Engine struct {
	cache     Cache
	providers []Provider
	logger    *zap.Logger
}

// NewEngine builds an Engine. Providers are consulted in order,
// short-circuiting on the first hit.
func NewEngine(cache Cache, providers []Provider, logger *zap.Logger) *Engine {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cache:     cache,
		providers: providers,
		logger:    logger,
	}
}

// Analyze resolves each ingredient line to a weighted nutrient
// contribution and sums the totals. Lines no provider recognizes are
// reported as not found and contribute zero.
func (e *Engine) Analyze(ctx context.Context, lines []string) (Analysis, error) {
	analysis := Analysis{Breakdown: make([]LineResult, 0, len(lines))}

	for _, line := range lines {
		if ctx.Err() != nil {
			return analysis, ctx.Err()
		}

		parsed := ParseIngredient(line)
		term := CleanTerm(parsed.Name)
		if term == "" {
			analysis.Breakdown = append(analysis.Breakdown, LineResult{Ingredient: line, Status: StatusNotFound})
			continue
		}

		rec, source, err := e.resolve(ctx, term)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.logger.Warn("nutrition lookup failed", zap.String("term", term), zap.Error(err))
			}
			analysis.Breakdown = append(analysis.Breakdown, LineResult{Ingredient: line, Status: StatusNotFound})
			continue
		}

		grams := resolveGrams(parsed, rec)
		stats := scaleNutrition(rec, grams)
		addNutrition(&analysis.Total, stats)

		analysis.Breakdown = append(analysis.Breakdown, LineResult{
			Ingredient: line,
			Parsed: &ParsedWeight{
				Name:        term,
				Quantity:    parsed.Quantity,
				Unit:        parsed.Unit,
				WeightGrams: grams,
			},
			Stats:  &stats,
			Source: source,
		})
	}

	roundTotals(&analysis.Total)
	return analysis, nil
}

// FindForRecipe performs a single-shot, name-based lookup used by the
// auditor's nutrition backfill. The returned record is per reference
// serving, not scaled.
func (e *Engine) FindForRecipe(ctx context.Context, name string) (*recipe.Nutrition, string, error) {
	term := CleanTerm(name)
	if term == "" {
		return nil, "", ErrNotFound
	}
	rec, source, err := e.resolve(ctx, term)
	if err != nil {
		return nil, "", err
	}
	n := rec.Nutrition
	return &n, source, nil
}

// resolve walks cache then the provider chain. Provider hits are written
// back to the cache without blocking the response.
func (e *Engine) resolve(ctx context.Context, term string) (NutrientRecord, string, error) {
	if e.cache != nil {
		entry, ok, err := e.cache.Get(ctx, term)
		if err != nil {
			e.logger.Warn("cache read failed", zap.String("term", term), zap.Error(err))
		} else if ok {
			metrics.ObserveNutritionLookup(entry.Source, "cache_hit")
			return entry.Record, entry.Source, nil
		}
	}

	for _, provider := range e.providers {
		rec, err := provider.Search(ctx, term)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.logger.Warn("provider search failed",
					zap.String("provider", provider.Name()),
					zap.String("term", term),
					zap.Error(err),
				)
			}
			continue
		}
		e.writeBack(CacheEntry{
			Term:          term,
			SchemaVersion: SchemaVersion,
			Record:        rec,
			Source:        provider.Name(),
		})
		metrics.ObserveNutritionLookup(provider.Name(), "hit")
		return rec, provider.Name(), nil
	}
	metrics.ObserveNutritionLookup("none", "miss")
	return NutrientRecord{}, "", ErrNotFound
}

// writeBack is fire-and-forget: cached values are derived state and a
// lost write only costs one extra provider call later.
func (e *Engine) writeBack(entry CacheEntry) {
	if e.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.cache.Put(ctx, entry); err != nil {
			e.logger.Warn("cache write failed", zap.String("term", entry.Term), zap.Error(err))
		}
	}()
}

// resolveGrams prefers an exact provider portion weight when the parsed
// unit matches a portion's measure text, falling back to the generic
// unit conversion tables.
func resolveGrams(parsed ParsedIngredient, rec NutrientRecord) float64 {
	if parsed.Unit != "" {
		unit := strings.ToLower(parsed.Unit)
		for _, portion := range rec.Portions {
			if strings.Contains(strings.ToLower(portion.Measure), unit) {
				return parsed.Quantity * portion.Grams
			}
		}
	}
	return UnitToGrams(parsed.Unit, parsed.Quantity, parsed.Name)
}

func scaleNutrition(rec NutrientRecord, grams float64) recipe.Nutrition {
	ref := rec.ServingSizeG
	if ref <= 0 {
		ref = 100
	}
	ratio := grams / ref
	n := rec.Nutrition
	return recipe.Nutrition{
		Calories:    n.Calories * ratio,
		Protein:     n.Protein * ratio,
		Fat:         n.Fat * ratio,
		Carbs:       n.Carbs * ratio,
		Fiber:       n.Fiber * ratio,
		Sugar:       n.Sugar * ratio,
		CalciumMg:   n.CalciumMg * ratio,
		IronMg:      n.IronMg * ratio,
		VitaminAMcg: n.VitaminAMcg * ratio,
		VitaminCMg:  n.VitaminCMg * ratio,
	}
}

func addNutrition(total *recipe.Nutrition, n recipe.Nutrition) {
	total.Calories += n.Calories
	total.Protein += n.Protein
	total.Fat += n.Fat
	total.Carbs += n.Carbs
	total.Fiber += n.Fiber
	total.Sugar += n.Sugar
	total.CalciumMg += n.CalciumMg
	total.IronMg += n.IronMg
	total.VitaminAMcg += n.VitaminAMcg
	total.VitaminCMg += n.VitaminCMg
}

// Calorie and macro totals round to integers, micronutrients to one
// decimal place.
func roundTotals(total *recipe.Nutrition) {
	total.Calories = math.Round(total.Calories)
	total.Protein = math.Round(total.Protein)
	total.Fat = math.Round(total.Fat)
	total.Carbs = math.Round(total.Carbs)
	total.Fiber = roundTenth(total.Fiber)
	total.Sugar = roundTenth(total.Sugar)
	total.CalciumMg = roundTenth(total.CalciumMg)
	total.IronMg = roundTenth(total.IronMg)
	total.VitaminAMcg = roundTenth(total.VitaminAMcg)
	total.VitaminCMg = roundTenth(total.VitaminCMg)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
