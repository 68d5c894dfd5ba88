// Package extract pulls candidate recipe records out of fetched HTML,
// preferring schema.org structured data with a heuristic DOM fallback.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"recipeharvest/internal/recipe"
)

// FromDocument extracts zero or more candidate recipes from a parsed
// page. Structured ld+json blocks win; when they are absent or lack
// instructions the DOM heuristics fill in.
func FromDocument(doc *goquery.Document, pageURL string) []recipe.Recipe {
	candidates := fromStructuredData(doc, pageURL)

	if len(candidates) == 0 {
		if dom, ok := fromDOM(doc, pageURL); ok {
			candidates = append(candidates, dom)
		}
		return candidates
	}

	// Structured data without instructions gets augmented from the DOM.
	for i := range candidates {
		if len(candidates[i].RecipeInstructions) == 0 {
			if steps := allText(doc, domInstructionSelectors); len(steps) > 0 {
				candidates[i].RecipeInstructions = steps
			}
		}
	}
	return candidates
}

func fromStructuredData(doc *goquery.Document, pageURL string) []recipe.Recipe {
	var out []recipe.Recipe
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var parsed any
		if err := json.Unmarshal([]byte(sel.Text()), &parsed); err != nil {
			// Malformed blocks are common in the wild; skip them.
			return
		}
		for _, item := range unwrapItems(parsed) {
			if !hasType(item, "Recipe") {
				continue
			}
			out = append(out, buildRecipe(item, pageURL))
		}
	})
	return out
}

// unwrapItems flattens the three legal container shapes: bare object,
// array of objects, and @graph wrapper.
func unwrapItems(parsed any) []map[string]any {
	switch v := parsed.(type) {
	case []any:
		var items []map[string]any
		for _, el := range v {
			items = append(items, unwrapItems(el)...)
		}
		return items
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var items []map[string]any
			for _, el := range graph {
				items = append(items, unwrapItems(el)...)
			}
			return items
		}
		return []map[string]any{v}
	default:
		return nil
	}
}

func hasType(item map[string]any, want string) bool {
	switch t := item["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func buildRecipe(item map[string]any, pageURL string) recipe.Recipe {
	return recipe.Recipe{
		URL:                recipe.NormalizeURL(pageURL),
		Name:               stringField(item, "name"),
		Description:        stringField(item, "description"),
		Image:              normalizeImage(item["image"]),
		PrepTime:           stringField(item, "prepTime"),
		CookTime:           stringField(item, "cookTime"),
		TotalTime:          stringField(item, "totalTime"),
		RecipeYield:        yieldField(item["recipeYield"]),
		RecipeIngredients:  stringSlice(item["recipeIngredient"]),
		RecipeInstructions: flattenInstructions(item["recipeInstructions"]),
		RecipeCategory:     joinedField(item["recipeCategory"]),
		RecipeCuisine:      joinedField(item["recipeCuisine"]),
		Nutrition:          parseNutrition(item["nutrition"]),
	}
}

// normalizeImage collapses the three legal image shapes (bare string,
// array, image-object-with-url) to a single URL string.
func normalizeImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return normalizeImage(img[0])
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return u
		}
		if u, ok := img["contentUrl"].(string); ok {
			return u
		}
	}
	return ""
}

// flattenInstructions handles the nested HowToSection/HowToStep shapes
// plus plain strings, preserving step order.
func flattenInstructions(v any) []string {
	switch inst := v.(type) {
	case string:
		if inst == "" {
			return nil
		}
		return []string{inst}
	case []any:
		var steps []string
		for _, el := range inst {
			switch step := el.(type) {
			case string:
				if step != "" {
					steps = append(steps, step)
				}
			case map[string]any:
				switch {
				case hasType(step, "HowToSection"):
					if list, ok := step["itemListElement"].([]any); ok {
						steps = append(steps, flattenInstructions(list)...)
					}
				case hasType(step, "HowToStep"):
					if text, ok := step["text"].(string); ok && text != "" {
						steps = append(steps, text)
					}
				default:
					if text, ok := step["text"].(string); ok && text != "" {
						steps = append(steps, text)
					}
				}
			}
		}
		return steps
	}
	return nil
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return strings.TrimSpace(s)
}

func stringSlice(v any) []string {
	switch f := v.(type) {
	case string:
		// Single-value shorthand for a one-element list.
		if s := strings.TrimSpace(f); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, el := range f {
			if s, ok := el.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

func joinedField(v any) string {
	switch f := v.(type) {
	case string:
		return f
	case []any:
		var parts []string
		for _, el := range f {
			if s, ok := el.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func yieldField(v any) string {
	switch y := v.(type) {
	case string:
		return y
	case float64:
		return strconv.FormatFloat(y, 'f', -1, 64)
	case []any:
		if len(y) > 0 {
			return yieldField(y[0])
		}
	}
	return ""
}

// parseNutrition reads a schema.org NutritionInformation object whose
// values are strings like "240 kcal" or "12 g".
func parseNutrition(v any) *recipe.Nutrition {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	n := &recipe.Nutrition{
		Calories: leadingNumber(obj["calories"]),
		Protein:  leadingNumber(obj["proteinContent"]),
		Fat:      leadingNumber(obj["fatContent"]),
		Carbs:    leadingNumber(obj["carbohydrateContent"]),
		Fiber:    leadingNumber(obj["fiberContent"]),
		Sugar:    leadingNumber(obj["sugarContent"]),
	}
	return n
}

func leadingNumber(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		fields := strings.Fields(strings.TrimSpace(val))
		if len(fields) == 0 {
			return 0
		}
		num, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0
		}
		return num
	}
	return 0
}
