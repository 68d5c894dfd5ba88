// Package recipe defines core types shared across subsystems.
package recipe

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending     JobStatus = "pending"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusBlocked     JobStatus = "blocked"
	JobStatusCoolingDown JobStatus = "cooling_down"
)

// Live reports whether the status counts toward the one-live-job-per-URL
// constraint. Completed and failed jobs may be re-targeted by new rows.
func (s JobStatus) Live() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCoolingDown:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the job row's lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CrawlJob represents one crawl attempt for one seed URL.
type CrawlJob struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Status       JobStatus  `json:"status"`
	RetryCount   int        `json:"retry_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	RecipesFound int        `json:"recipes_found"`
	Log          string     `json:"log,omitempty"`
	IsArchived   bool       `json:"is_archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// QAStatus is the standing-quality state assigned by the auditor.
type QAStatus string

// QA status values persisted on recipes.
const (
	QAStatusPending     QAStatus = "pending"
	QAStatusVerified    QAStatus = "verified"
	QAStatusFlagged     QAStatus = "flagged"
	QAStatusQuarantined QAStatus = "quarantined"
)

// Nutrition is the canonical nutrient record attached to a recipe or
// returned by the analysis engine. Macro values are grams, calories kcal.
type Nutrition struct {
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Fat         float64 `json:"fat"`
	Carbs       float64 `json:"carbs"`
	Fiber       float64 `json:"fiber,omitempty"`
	Sugar       float64 `json:"sugar,omitempty"`
	CalciumMg   float64 `json:"calcium_mg,omitempty"`
	IronMg      float64 `json:"iron_mg,omitempty"`
	VitaminAMcg float64 `json:"vitamin_a_mcg,omitempty"`
	VitaminCMg  float64 `json:"vitamin_c_mg,omitempty"`
}

// Recipe is the structured record extracted from a page, keyed by its
// normalized URL (the upsert target).
type Recipe struct {
	ID                 string     `json:"id"`
	URL                string     `json:"url"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Image              string     `json:"image,omitempty"`
	PrepTime           string     `json:"prep_time,omitempty"`
	CookTime           string     `json:"cook_time,omitempty"`
	TotalTime          string     `json:"total_time,omitempty"`
	RecipeYield        string     `json:"recipe_yield,omitempty"`
	RecipeIngredients  []string   `json:"recipe_ingredients,omitempty"`
	RecipeInstructions []string   `json:"recipe_instructions,omitempty"`
	RecipeCategory     string     `json:"recipe_category,omitempty"`
	RecipeCuisine      string     `json:"recipe_cuisine,omitempty"`
	Nutrition          *Nutrition `json:"nutrition,omitempty"`
	QAStatus           QAStatus   `json:"qa_status,omitempty"`
	QualityScore       int        `json:"quality_score"`
	AuditLog           []string   `json:"audit_log,omitempty"`
	LastAuditedAt      *time.Time `json:"last_audited_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// AuditUpdate carries everything the auditor persists in one write.
type AuditUpdate struct {
	RecipeID     string
	QAStatus     QAStatus
	QualityScore int
	AuditLog     []string
	AuditedAt    time.Time
	Nutrition    *Nutrition // staged backfill, nil if unchanged
	Image        string     // staged correction, empty if unchanged
}
