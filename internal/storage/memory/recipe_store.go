package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"recipeharvest/internal/recipe"
)

// RecipeStore keeps extracted recipes keyed by normalized URL.
type RecipeStore struct {
	mu      sync.RWMutex
	byURL   map[string]recipe.Recipe
	byID    map[string]string
	nextSeq int
}

// NewRecipeStore constructs a RecipeStore.
func NewRecipeStore() *RecipeStore {
	return &RecipeStore{
		byURL: make(map[string]recipe.Recipe),
		byID:  make(map[string]string),
	}
}

// UpsertRecipe inserts or replaces the recipe stored for its URL. The
// original row's ID and created_at survive a replace.
func (s *RecipeStore) UpsertRecipe(_ context.Context, r recipe.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.byURL[r.URL]; ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	} else {
		if r.ID == "" {
			s.nextSeq++
			r.ID = fmt.Sprintf("recipe-%d", s.nextSeq)
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	}
	r.UpdatedAt = now
	s.byURL[r.URL] = r
	s.byID[r.ID] = r.URL
	return nil
}

// NextAuditBatch returns up to limit recipes awaiting audit: qa_status
// pending or never audited, least recently audited first.
func (s *RecipeStore) NextAuditBatch(_ context.Context, limit int) ([]recipe.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []recipe.Recipe
	for _, r := range s.byURL {
		if r.QAStatus == recipe.QAStatusPending || r.QAStatus == "" || r.LastAuditedAt == nil {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].LastAuditedAt, due[j].LastAuditedAt
		switch {
		case a == nil && b == nil:
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ApplyAudit persists an audit verdict and its staged corrections.
func (s *RecipeStore) ApplyAudit(_ context.Context, update recipe.AuditUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.byID[update.RecipeID]
	if !ok {
		return errors.New("recipe not found")
	}
	r := s.byURL[url]
	r.QAStatus = update.QAStatus
	r.QualityScore = update.QualityScore
	r.AuditLog = update.AuditLog
	auditedAt := update.AuditedAt
	r.LastAuditedAt = &auditedAt
	if update.Nutrition != nil {
		r.Nutrition = update.Nutrition
	}
	if update.Image != "" {
		r.Image = update.Image
	}
	r.UpdatedAt = time.Now().UTC()
	s.byURL[url] = r
	return nil
}

// GetRecipe fetches the recipe stored for a URL.
func (s *RecipeStore) GetRecipe(_ context.Context, url string) (recipe.Recipe, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byURL[url]
	return r, ok, nil
}
