package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const structuredPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Garlic Butter Shrimp",
  "description": "Quick weeknight shrimp in a garlic butter sauce.",
  "image": {"@type": "ImageObject", "url": "https://example.com/shrimp.jpg"},
  "prepTime": "PT5M",
  "cookTime": "PT10M",
  "recipeYield": 4,
  "recipeIngredient": ["500 g shrimp", "3 cloves garlic", "50 g butter"],
  "recipeInstructions": [
    {"@type": "HowToSection", "itemListElement": [
      {"@type": "HowToStep", "text": "Melt the butter."},
      {"@type": "HowToStep", "text": "Add the garlic."}
    ]},
    {"@type": "HowToStep", "text": "Toss in the shrimp."}
  ],
  "recipeCategory": ["Dinner", "Seafood"],
  "nutrition": {"@type": "NutritionInformation", "calories": "240 kcal", "proteinContent": "28 g"}
}
</script>
</head><body></body></html>`

func TestFromDocumentStructuredData(t *testing.T) {
	t.Parallel()

	got := FromDocument(docFromHTML(t, structuredPage), "https://example.com/recipes/shrimp/?ref=home")
	require.Len(t, got, 1)

	r := got[0]
	require.Equal(t, "https://example.com/recipes/shrimp", r.URL)
	require.Equal(t, "Garlic Butter Shrimp", r.Name)
	require.Equal(t, "https://example.com/shrimp.jpg", r.Image)
	require.Equal(t, "4", r.RecipeYield)
	require.Equal(t, []string{"500 g shrimp", "3 cloves garlic", "50 g butter"}, r.RecipeIngredients)
	require.Equal(t, []string{"Melt the butter.", "Add the garlic.", "Toss in the shrimp."}, r.RecipeInstructions)
	require.Equal(t, "Dinner, Seafood", r.RecipeCategory)
	require.NotNil(t, r.Nutrition)
	require.Equal(t, 240.0, r.Nutrition.Calories)
	require.Equal(t, 28.0, r.Nutrition.Protein)
}

const graphPage = `<html><head>
<script type="application/ld+json">
{"@graph": [
  {"@type": "WebPage", "name": "Some page"},
  {"@type": ["Recipe", "Thing"], "name": "Graph Pancakes",
   "image": ["https://example.com/a.jpg", "https://example.com/b.jpg"],
   "recipeIngredient": ["flour"], "recipeInstructions": "Mix and fry."}
]}
</script>
</head><body></body></html>`

func TestFromDocumentUnwrapsGraphAndTypeArrays(t *testing.T) {
	t.Parallel()

	got := FromDocument(docFromHTML(t, graphPage), "https://example.com/pancakes")
	require.Len(t, got, 1)
	require.Equal(t, "Graph Pancakes", got[0].Name)
	require.Equal(t, "https://example.com/a.jpg", got[0].Image)
	require.Equal(t, []string{"Mix and fry."}, got[0].RecipeInstructions)
}

const domOnlyPage = `<html><body>
<h1 class="entry-title">Rustic Bread</h1>
<div class="entry-content"><p>A simple overnight loaf.</p>
<img src="https://example.com/bread.jpg"/></div>
<ul>
  <li class="ingredient">500 g flour</li>
  <li class="ingredient">350 ml water</li>
</ul>
<div class="instructions"><ol>
  <li>Mix the dough.</li>
  <li>Rest overnight.</li>
</ol></div>
</body></html>`

func TestFromDocumentDOMFallback(t *testing.T) {
	t.Parallel()

	got := FromDocument(docFromHTML(t, domOnlyPage), "https://example.com/bread/")
	require.Len(t, got, 1)

	r := got[0]
	require.Equal(t, "Rustic Bread", r.Name)
	require.Equal(t, "https://example.com/bread.jpg", r.Image)
	require.Equal(t, []string{"500 g flour", "350 ml water"}, r.RecipeIngredients)
	require.Equal(t, []string{"Mix the dough.", "Rest overnight."}, r.RecipeInstructions)
}

const missingInstructionsPage = `<html><head>
<script type="application/ld+json">
{"@type": "Recipe", "name": "Schema Soup", "recipeIngredient": ["water", "salt"]}
</script>
</head><body>
<div class="instructions"><ol><li>Boil the water.</li><li>Season.</li></ol></div>
</body></html>`

func TestFromDocumentAugmentsMissingInstructionsFromDOM(t *testing.T) {
	t.Parallel()

	got := FromDocument(docFromHTML(t, missingInstructionsPage), "https://example.com/soup")
	require.Len(t, got, 1)
	require.Equal(t, []string{"Boil the water.", "Season."}, got[0].RecipeInstructions)
}

func TestFromDocumentIgnoresMalformedBlocksAndNonRecipes(t *testing.T) {
	t.Parallel()

	const page = `<html><head>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">{"@type": "Article", "name": "Not food"}</script>
</head><body><p>nothing here</p></body></html>`

	got := FromDocument(docFromHTML(t, page), "https://example.com/article")
	require.Empty(t, got)
}

const singleIngredientPage = `<html><head>
<script type="application/ld+json">
{"@type": "Recipe", "name": "Boiled Egg",
 "recipeIngredient": "1 large egg",
 "recipeInstructions": ["Boil for seven minutes."]}
</script>
</head><body></body></html>`

func TestFromDocumentAcceptsBareStringIngredient(t *testing.T) {
	t.Parallel()

	got := FromDocument(docFromHTML(t, singleIngredientPage), "https://example.com/egg")
	require.Len(t, got, 1)
	require.Equal(t, []string{"1 large egg"}, got[0].RecipeIngredients)
}
