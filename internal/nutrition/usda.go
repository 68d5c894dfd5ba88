package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recipeharvest/internal/recipe"
)

// Nutrient IDs in the USDA FoodData Central schema.
const (
	usdaEnergyKcal  = 1008
	usdaProtein     = 1003
	usdaFat         = 1004
	usdaCarbs       = 1005
	usdaFiber       = 1079
	usdaSugar       = 2000
	usdaCalciumMg   = 1087
	usdaIronMg      = 1089
	usdaVitaminAMcg = 1106
	usdaVitaminCMg  = 1162
)

const defaultUSDABaseURL = "https://api.nal.usda.gov/fdc/v1"

// USDAConfig configures the primary nutrition provider.
type USDAConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// USDAProvider queries the USDA FoodData Central search API. It is the
// primary provider: richer nutrient set including micronutrients and
// portion weights.
type USDAProvider struct {
	cfg    USDAConfig
	client *http.Client
}

// NewUSDAProvider constructs the provider with sane defaults.
func NewUSDAProvider(cfg USDAConfig) *USDAProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultUSDABaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &USDAProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Provider.
func (p *USDAProvider) Name() string { return "usda" }

type usdaSearchResponse struct {
	Foods []usdaFood `json:"foods"`
}

type usdaFood struct {
	Description   string         `json:"description"`
	DataType      string         `json:"dataType"`
	BrandOwner    string         `json:"brandOwner"`
	FoodNutrients []usdaNutrient `json:"foodNutrients"`
	FoodMeasures  []usdaMeasure  `json:"foodMeasures"`
}

type usdaNutrient struct {
	NutrientID int     `json:"nutrientId"`
	Value      float64 `json:"value"`
}

type usdaMeasure struct {
	DisseminationText string  `json:"disseminationText"`
	GramWeight        float64 `json:"gramWeight"`
}

// Search looks the term up in FoodData Central and returns the most
// relevant candidate normalized to the canonical record shape.
func (p *USDAProvider) Search(ctx context.Context, term string) (NutrientRecord, error) {
	if p.cfg.APIKey == "" {
		return NutrientRecord{}, ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/foods/search?%s", p.cfg.BaseURL, url.Values{
		"api_key":  {p.cfg.APIKey},
		"query":    {term},
		"pageSize": {strconv.Itoa(p.cfg.PageSize)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NutrientRecord{}, fmt.Errorf("build usda request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return NutrientRecord{}, fmt.Errorf("usda search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NutrientRecord{}, fmt.Errorf("usda search: unexpected status %d", resp.StatusCode)
	}

	var parsed usdaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return NutrientRecord{}, fmt.Errorf("decode usda response: %w", err)
	}
	if len(parsed.Foods) == 0 {
		return NutrientRecord{}, ErrNotFound
	}

	best := parsed.Foods[0]
	bestScore := relevanceScore(term, best)
	for _, food := range parsed.Foods[1:] {
		if s := relevanceScore(term, food); s > bestScore {
			best, bestScore = food, s
		}
	}

	return normalizeUSDAFood(best), nil
}

// relevanceScore ranks a candidate: exact and prefix description matches
// are rewarded, branded or processed entries are penalized unless the
// query itself implies processing, and implausible zero-calorie matches
// for non-low-calorie queries are pushed down.
func relevanceScore(query string, food usdaFood) int {
	q := strings.ToLower(strings.TrimSpace(query))
	desc := strings.ToLower(food.Description)

	score := 0
	switch {
	case desc == q:
		score += 100
	case strings.HasPrefix(desc, q):
		score += 50
	case strings.Contains(desc, q):
		score += 20
	}

	processed := queryImpliesProcessing(q)
	switch food.DataType {
	case "Foundation":
		score += 30
	case "SR Legacy":
		score += 25
	case "Survey (FNDDS)":
		score += 10
	case "Branded":
		if !processed {
			score -= 30
		}
	}
	if food.BrandOwner != "" && !processed {
		score -= 10
	}

	if nutrientValue(food.FoodNutrients, usdaEnergyKcal) == 0 && !queryIsLowCalorie(q) {
		score -= 40
	}
	return score
}

var processingWords = []string{"canned", "instant", "powder", "powdered", "mix", "concentrate", "processed", "packaged"}

func queryImpliesProcessing(q string) bool {
	for _, w := range processingWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

var lowCalorieWords = []string{"water", "tea", "coffee", "salt", "diet", "sparkling", "broth"}

func queryIsLowCalorie(q string) bool {
	for _, w := range lowCalorieWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func nutrientValue(nutrients []usdaNutrient, id int) float64 {
	for _, n := range nutrients {
		if n.NutrientID == id {
			return n.Value
		}
	}
	return 0
}

func normalizeUSDAFood(food usdaFood) NutrientRecord {
	rec := NutrientRecord{
		Description: food.Description,
		Nutrition: recipe.Nutrition{
			Calories:    nutrientValue(food.FoodNutrients, usdaEnergyKcal),
			Protein:     nutrientValue(food.FoodNutrients, usdaProtein),
			Fat:         nutrientValue(food.FoodNutrients, usdaFat),
			Carbs:       nutrientValue(food.FoodNutrients, usdaCarbs),
			Fiber:       nutrientValue(food.FoodNutrients, usdaFiber),
			Sugar:       nutrientValue(food.FoodNutrients, usdaSugar),
			CalciumMg:   nutrientValue(food.FoodNutrients, usdaCalciumMg),
			IronMg:      nutrientValue(food.FoodNutrients, usdaIronMg),
			VitaminAMcg: nutrientValue(food.FoodNutrients, usdaVitaminAMcg),
			VitaminCMg:  nutrientValue(food.FoodNutrients, usdaVitaminCMg),
		},
		// Search results are normalized per 100 g.
		ServingSizeG: 100,
	}
	for _, m := range food.FoodMeasures {
		if m.GramWeight > 0 && m.DisseminationText != "" {
			rec.Portions = append(rec.Portions, Portion{Measure: m.DisseminationText, Grams: m.GramWeight})
		}
	}
	return rec
}
