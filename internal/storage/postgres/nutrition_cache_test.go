package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"recipeharvest/internal/nutrition"
	"recipeharvest/internal/recipe"
)

func TestNutritionCacheGetHit(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache, err := NewNutritionCacheWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT term, schema_version, record, source FROM ingredient_cache").
		WithArgs("egg whole", nutrition.SchemaVersion).
		WillReturnRows(pgxmock.NewRows([]string{"term", "schema_version", "record", "source"}).
			AddRow("egg whole", nutrition.SchemaVersion,
				[]byte(`{"description":"Egg, whole, raw","nutrition":{"calories":143,"protein":12.6,"fat":9.5,"carbs":0.7},"serving_size_g":100}`),
				"usda"))

	entry, hit, err := cache.Get(context.Background(), "egg whole")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "usda", entry.Source)
	require.Equal(t, float64(143), entry.Record.Nutrition.Calories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNutritionCacheGetMiss(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache, err := NewNutritionCacheWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT term, schema_version, record, source FROM ingredient_cache").
		WithArgs("dragon fruit", nutrition.SchemaVersion).
		WillReturnError(pgx.ErrNoRows)

	_, hit, err := cache.Get(context.Background(), "dragon fruit")
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNutritionCachePutUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache, err := NewNutritionCacheWithPool(mock)
	require.NoError(t, err)

	entry := nutrition.CacheEntry{
		Term:          "flour wheat all-purpose",
		SchemaVersion: nutrition.SchemaVersion,
		Record: nutrition.NutrientRecord{
			Description:  "Wheat flour, white, all-purpose",
			Nutrition:    recipe.Nutrition{Calories: 364, Protein: 10.3, Fat: 1, Carbs: 76.3},
			ServingSizeG: 100,
		},
		Source: "usda",
	}

	mock.ExpectExec("INSERT INTO ingredient_cache").
		WithArgs(entry.Term, entry.SchemaVersion, pgxmock.AnyArg(), entry.Source, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, cache.Put(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}
