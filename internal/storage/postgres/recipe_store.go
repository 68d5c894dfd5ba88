package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"recipeharvest/internal/recipe"
)

const recipeColumns = `id, url, name, description, image, prep_time, cook_time, total_time, recipe_yield,
ingredients, instructions, category, cuisine, nutrition, qa_status, quality_score, audit_log,
last_audited_at, created_at, updated_at`

// RecipeStore persists extracted recipes in Postgres, keyed by their
// normalized URL.
type RecipeStore struct {
	pool dbPool
	ids  recipe.IDGenerator
}

// NewRecipeStore creates a Postgres-backed RecipeStore.
func NewRecipeStore(ctx context.Context, cfg Config, ids recipe.IDGenerator) (*RecipeStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RecipeStore{pool: pool, ids: ids}, nil
}

// NewRecipeStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewRecipeStoreWithPool(pool dbPool, ids recipe.IDGenerator) (*RecipeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecipeStore{pool: pool, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *RecipeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertRecipe inserts or replaces the recipe stored for its URL. The
// original row's id and created_at survive a replace.
func (s *RecipeStore) UpsertRecipe(ctx context.Context, r recipe.Recipe) error {
	if r.URL == "" {
		return fmt.Errorf("recipe url is required")
	}
	if r.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("generate recipe id: %w", err)
		}
		r.ID = id
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	ingredients, err := json.Marshal(r.RecipeIngredients)
	if err != nil {
		return fmt.Errorf("marshal ingredients: %w", err)
	}
	instructions, err := json.Marshal(r.RecipeInstructions)
	if err != nil {
		return fmt.Errorf("marshal instructions: %w", err)
	}
	auditLog, err := json.Marshal(r.AuditLog)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	nutrition, err := marshalNutrition(r.Nutrition)
	if err != nil {
		return err
	}

	query := `
INSERT INTO recipes (` + recipeColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
ON CONFLICT (url) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	image = EXCLUDED.image,
	prep_time = EXCLUDED.prep_time,
	cook_time = EXCLUDED.cook_time,
	total_time = EXCLUDED.total_time,
	recipe_yield = EXCLUDED.recipe_yield,
	ingredients = EXCLUDED.ingredients,
	instructions = EXCLUDED.instructions,
	category = EXCLUDED.category,
	cuisine = EXCLUDED.cuisine,
	nutrition = EXCLUDED.nutrition,
	qa_status = EXCLUDED.qa_status,
	quality_score = EXCLUDED.quality_score,
	updated_at = EXCLUDED.updated_at`
	args := []any{
		r.ID, r.URL, r.Name, r.Description, r.Image, r.PrepTime, r.CookTime, r.TotalTime, r.RecipeYield,
		ingredients, instructions, r.RecipeCategory, r.RecipeCuisine, nutrition, string(r.QAStatus),
		r.QualityScore, auditLog, r.LastAuditedAt, r.CreatedAt, now,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert recipe: %w", err)
	}
	return nil
}

// NextAuditBatch returns up to limit recipes awaiting audit, least
// recently audited first with never-audited rows leading.
func (s *RecipeStore) NextAuditBatch(ctx context.Context, limit int) ([]recipe.Recipe, error) {
	query := `
SELECT ` + recipeColumns + ` FROM recipes
WHERE qa_status = 'pending' OR qa_status = '' OR last_audited_at IS NULL
ORDER BY last_audited_at ASC NULLS FIRST, created_at ASC
LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch audit batch: %w", err)
	}
	defer rows.Close()

	var batch []recipe.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch audit batch: %w", err)
	}
	return batch, nil
}

// ApplyAudit persists an audit verdict and its staged corrections in
// one update. Null staged fields leave the stored values alone.
func (s *RecipeStore) ApplyAudit(ctx context.Context, update recipe.AuditUpdate) error {
	auditLog, err := json.Marshal(update.AuditLog)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	nutrition, err := marshalNutrition(update.Nutrition)
	if err != nil {
		return err
	}
	var image *string
	if update.Image != "" {
		image = &update.Image
	}

	query := `
UPDATE recipes SET
	qa_status = $2,
	quality_score = $3,
	audit_log = $4,
	last_audited_at = $5,
	nutrition = COALESCE($6, nutrition),
	image = COALESCE($7, image),
	updated_at = $8
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		update.RecipeID, string(update.QAStatus), update.QualityScore, auditLog,
		update.AuditedAt, nutrition, image, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recipe %s not found", update.RecipeID)
	}
	return nil
}

// GetRecipe fetches the recipe stored for a URL.
func (s *RecipeStore) GetRecipe(ctx context.Context, url string) (recipe.Recipe, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE url = $1`, url)
	r, err := scanRecipe(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.Recipe{}, false, nil
	}
	if err != nil {
		return recipe.Recipe{}, false, fmt.Errorf("get recipe: %w", err)
	}
	return r, true, nil
}

func marshalNutrition(n *recipe.Nutrition) ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal nutrition: %w", err)
	}
	return data, nil
}

func scanRecipe(row pgx.Row) (recipe.Recipe, error) {
	var (
		r            recipe.Recipe
		qaStatus     string
		ingredients  []byte
		instructions []byte
		auditLog     []byte
		nutrition    []byte
	)
	err := row.Scan(
		&r.ID, &r.URL, &r.Name, &r.Description, &r.Image, &r.PrepTime, &r.CookTime, &r.TotalTime,
		&r.RecipeYield, &ingredients, &instructions, &r.RecipeCategory, &r.RecipeCuisine,
		&nutrition, &qaStatus, &r.QualityScore, &auditLog, &r.LastAuditedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.QAStatus = recipe.QAStatus(qaStatus)
	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &r.RecipeIngredients); err != nil {
			return recipe.Recipe{}, fmt.Errorf("unmarshal ingredients: %w", err)
		}
	}
	if len(instructions) > 0 {
		if err := json.Unmarshal(instructions, &r.RecipeInstructions); err != nil {
			return recipe.Recipe{}, fmt.Errorf("unmarshal instructions: %w", err)
		}
	}
	if len(auditLog) > 0 {
		if err := json.Unmarshal(auditLog, &r.AuditLog); err != nil {
			return recipe.Recipe{}, fmt.Errorf("unmarshal audit log: %w", err)
		}
	}
	if len(nutrition) > 0 {
		r.Nutrition = &recipe.Nutrition{}
		if err := json.Unmarshal(nutrition, r.Nutrition); err != nil {
			return recipe.Recipe{}, fmt.Errorf("unmarshal nutrition: %w", err)
		}
	}
	return r, nil
}
