package nutrition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"recipeharvest/internal/recipe"
)

const (
	defaultFatSecretTokenURL = "https://oauth.fatsecret.com/connect/token"
	defaultFatSecretAPIURL   = "https://platform.fatsecret.com/rest/server.api"
)

// FatSecretConfig configures the secondary nutrition provider.
type FatSecretConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
}

// FatSecretProvider queries the FatSecret platform API. It is the
// fallback provider: simpler nutrient set, no micronutrients.
type FatSecretProvider struct {
	cfg    FatSecretConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewFatSecretProvider constructs the provider with sane defaults.
func NewFatSecretProvider(cfg FatSecretConfig) *FatSecretProvider {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultFatSecretTokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultFatSecretAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FatSecretProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Provider.
func (p *FatSecretProvider) Name() string { return "fatsecret" }

func (p *FatSecretProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return "", ErrNotFound
	}

	body := strings.NewReader("grant_type=client_credentials&scope=basic")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, body)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(p.cfg.ClientID + ":" + p.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fatsecret token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fatsecret token: unexpected status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	p.accessToken = parsed.AccessToken
	// Refresh one minute early so in-flight calls never carry a stale token.
	p.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn)*time.Second - time.Minute)
	return p.accessToken, nil
}

func (p *FatSecretProvider) call(ctx context.Context, params url.Values, out any) error {
	tok, err := p.token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build fatsecret request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fatsecret call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fatsecret call: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode fatsecret response: %w", err)
	}
	return nil
}

// fsFoodList tolerates the API's XML-to-JSON quirk where a single-item
// list is emitted as an object instead of an array.
type fsFoodList []fsFood

func (l *fsFoodList) UnmarshalJSON(data []byte) error {
	var many []fsFood
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one fsFood
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = fsFoodList{one}
	return nil
}

type fsFood struct {
	FoodID string `json:"food_id"`
	Name   string `json:"food_name"`
}

type fsServingList []fsServing

func (l *fsServingList) UnmarshalJSON(data []byte) error {
	var many []fsServing
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one fsServing
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = fsServingList{one}
	return nil
}

type fsServing struct {
	Calories            string `json:"calories"`
	Protein             string `json:"protein"`
	Fat                 string `json:"fat"`
	Carbohydrate        string `json:"carbohydrate"`
	Fiber               string `json:"fiber"`
	Sugar               string `json:"sugar"`
	MetricServingAmount string `json:"metric_serving_amount"`
	MetricServingUnit   string `json:"metric_serving_unit"`
	MeasurementDesc     string `json:"measurement_description"`
}

// Search finds the top match via foods.search, then fetches full
// serving detail via food.get.v2.
func (p *FatSecretProvider) Search(ctx context.Context, term string) (NutrientRecord, error) {
	var searchResp struct {
		Foods struct {
			Food fsFoodList `json:"food"`
		} `json:"foods"`
	}
	err := p.call(ctx, url.Values{
		"method":            {"foods.search"},
		"search_expression": {term},
		"format":            {"json"},
		"max_results":       {"1"},
	}, &searchResp)
	if err != nil {
		return NutrientRecord{}, err
	}
	if len(searchResp.Foods.Food) == 0 {
		return NutrientRecord{}, ErrNotFound
	}
	food := searchResp.Foods.Food[0]

	var detailResp struct {
		Food struct {
			Name     string `json:"food_name"`
			Servings struct {
				Serving fsServingList `json:"serving"`
			} `json:"servings"`
		} `json:"food"`
	}
	err = p.call(ctx, url.Values{
		"method":  {"food.get.v2"},
		"food_id": {food.FoodID},
		"format":  {"json"},
	}, &detailResp)
	if err != nil {
		return NutrientRecord{}, err
	}
	if len(detailResp.Food.Servings.Serving) == 0 {
		return NutrientRecord{}, ErrNotFound
	}
	serving := detailResp.Food.Servings.Serving[0]

	rec := NutrientRecord{
		Description: detailResp.Food.Name,
		Nutrition: recipe.Nutrition{
			Calories: fsNumber(serving.Calories),
			Protein:  fsNumber(serving.Protein),
			Fat:      fsNumber(serving.Fat),
			Carbs:    fsNumber(serving.Carbohydrate),
			Fiber:    fsNumber(serving.Fiber),
			Sugar:    fsNumber(serving.Sugar),
		},
		ServingSizeG: 100,
	}
	if strings.EqualFold(serving.MetricServingUnit, "g") {
		if grams := fsNumber(serving.MetricServingAmount); grams > 0 {
			rec.ServingSizeG = grams
			if serving.MeasurementDesc != "" {
				rec.Portions = []Portion{{Measure: serving.MeasurementDesc, Grams: grams}}
			}
		}
	}
	return rec, nil
}

func fsNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
