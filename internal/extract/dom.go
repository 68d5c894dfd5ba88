package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"recipeharvest/internal/recipe"
)

// CSS hooks for the WordPress Recipe Maker plugin and common theme
// markup, tried in order.
const (
	domNameSelectors        = ".wprm-recipe-name, .entry-title, h1"
	domDescSelectors        = ".wprm-recipe-summary, .entry-content p"
	domIngredientSelectors  = ".wprm-recipe-ingredient, .wprm-recipe-ingredient-name, li.ingredient"
	domInstructionSelectors = ".wprm-recipe-instruction-text, .wprm-recipe-instruction, .instructions li"
	domImageSelectors       = ".wprm-recipe-image img, .wprm-recipe-image-container img, .entry-content img"
)

// fromDOM scrapes a candidate with the heuristic selectors. A candidate
// is only usable when it has a name and at least one of the two lists.
func fromDOM(doc *goquery.Document, pageURL string) (recipe.Recipe, bool) {
	r := recipe.Recipe{
		URL:                recipe.NormalizeURL(pageURL),
		Name:               firstText(doc, domNameSelectors),
		Description:        firstText(doc, domDescSelectors),
		RecipeIngredients:  allText(doc, domIngredientSelectors),
		RecipeInstructions: allText(doc, domInstructionSelectors),
	}
	if src, ok := doc.Find(domImageSelectors).First().Attr("src"); ok {
		r.Image = src
	}

	if r.Name == "" || (len(r.RecipeIngredients) == 0 && len(r.RecipeInstructions) == 0) {
		return recipe.Recipe{}, false
	}
	return r, true
}

func firstText(doc *goquery.Document, selectors string) string {
	return strings.TrimSpace(doc.Find(selectors).First().Text())
}

func allText(doc *goquery.Document, selectors string) []string {
	var out []string
	doc.Find(selectors).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}
