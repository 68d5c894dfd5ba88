package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullRecipe() Recipe {
	return Recipe{
		Name:               "Classic Beef Stew",
		Description:        "A slow-cooked stew with root vegetables.",
		Image:              "https://example.com/stew.jpg",
		RecipeIngredients:  []string{"500 g beef", "2 carrots"},
		RecipeInstructions: []string{"Brown the beef.", "Simmer for two hours."},
		CookTime:           "PT2H",
		Nutrition:          &Nutrition{Calories: 420},
	}
}

func TestScoreFullRecipeIsHundred(t *testing.T) {
	t.Parallel()
	require.Equal(t, 100, Score(fullRecipe()))
}

func TestScoreEmptyRecipeIsZero(t *testing.T) {
	t.Parallel()
	require.Equal(t, 0, Score(Recipe{}))
}

func TestScoreSchedule(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, Score(Recipe{Name: "Stew"}))
	require.Equal(t, 0, Score(Recipe{Name: "abc"}), "name must exceed 3 chars")
	require.Equal(t, 10, Score(Recipe{Description: "longer than ten"}))
	require.Equal(t, 20, Score(Recipe{Image: "https://a.com/i.jpg"}))
	require.Equal(t, 0, Score(Recipe{Image: "short.jpg"}), "image must exceed 10 chars")
	require.Equal(t, 25, Score(Recipe{RecipeIngredients: []string{"salt"}}))
	require.Equal(t, 25, Score(Recipe{RecipeInstructions: []string{"stir"}}))
	require.Equal(t, 5, Score(Recipe{PrepTime: "PT10M"}))
	require.Equal(t, 5, Score(Recipe{Nutrition: &Nutrition{}}))
}

// Adding any contributing field never lowers the score.
func TestScoreMonotoneInAddedFields(t *testing.T) {
	t.Parallel()

	base := Recipe{Name: "Stew"}
	prev := Score(base)

	steps := []func(*Recipe){
		func(r *Recipe) { r.Description = "a hearty winter dish" },
		func(r *Recipe) { r.Image = "https://a.com/stew.jpg" },
		func(r *Recipe) { r.RecipeIngredients = []string{"beef"} },
		func(r *Recipe) { r.RecipeInstructions = []string{"cook"} },
		func(r *Recipe) { r.CookTime = "PT1H" },
		func(r *Recipe) { r.Nutrition = &Nutrition{Calories: 1} },
	}
	for i, step := range steps {
		step(&base)
		next := Score(base)
		require.GreaterOrEqual(t, next, prev, "step %d decreased score", i)
		require.LessOrEqual(t, next, 100)
		prev = next
	}
	require.Equal(t, 100, prev)
}
