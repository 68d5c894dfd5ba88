package recipe

// Score computes the 0-100 completeness score for a recipe record.
// The schedule is additive with no partial credit: missing or unknown
// fields simply contribute nothing.
func Score(r Recipe) int {
	score := 0
	if len(r.Name) > 3 {
		score += 10
	}
	if len(r.Description) > 10 {
		score += 10
	}
	if len(r.Image) > 10 {
		score += 20
	}
	if len(r.RecipeIngredients) > 0 {
		score += 25
	}
	if len(r.RecipeInstructions) > 0 {
		score += 25
	}
	if r.CookTime != "" || r.PrepTime != "" || r.TotalTime != "" {
		score += 5
	}
	if r.Nutrition != nil {
		score += 5
	}
	return score
}
