// Package app initializes and holds long-lived services shared by the
// api, worker and auditor processes.
package app

import (
	"context"
	"fmt"
	"time"

	gcloudpubsub "cloud.google.com/go/pubsub"
	gcloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"recipeharvest/internal/clock/system"
	"recipeharvest/internal/config"
	"recipeharvest/internal/id/uuid"
	"recipeharvest/internal/nutrition"
	pubsubpublisher "recipeharvest/internal/publisher/pubsub"
	"recipeharvest/internal/recipe"
	"recipeharvest/internal/storage/gcs"
	"recipeharvest/internal/storage/local"
	"recipeharvest/internal/storage/memory"
	"recipeharvest/internal/storage/postgres"
)

// App is the dependency container built once at startup. Postgres
// backs the stores when db.dsn is set, otherwise everything runs on
// the in-memory stores.
type App struct {
	Jobs      recipe.JobStore
	Recipes   recipe.RecipeStore
	Snapshots recipe.BlobStore
	Events    recipe.Publisher
	Nutrition *nutrition.Engine
	Clock     recipe.Clock

	logger  *zap.Logger
	cleanup []func()
}

// New wires stores, snapshot storage, event publishing and the
// nutrition engine from config. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Clock:  system.New(),
		logger: logger,
	}

	if err := a.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initSnapshots(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initEvents(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initNutrition(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases clients in reverse initialization order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	if cfg.DB.DSN == "" {
		a.logger.Info("no database configured, using in-memory stores")
		a.Jobs = memory.NewJobStore()
		a.Recipes = memory.NewRecipeStore()
		return nil
	}

	pgCfg := postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifeMins) * time.Minute,
	}
	ids := uuid.New()

	jobs, err := postgres.NewJobStore(ctx, pgCfg, ids)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	a.cleanup = append(a.cleanup, jobs.Close)

	recipes, err := postgres.NewRecipeStore(ctx, pgCfg, ids)
	if err != nil {
		return fmt.Errorf("init recipe store: %w", err)
	}
	a.cleanup = append(a.cleanup, recipes.Close)

	a.Jobs = jobs
	a.Recipes = recipes
	return nil
}

func (a *App) initSnapshots(ctx context.Context, cfg config.Config) error {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcloudstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.cleanup = append(a.cleanup, func() {
			if closeErr := client.Close(); closeErr != nil {
				a.logger.Warn("gcs client close failed", zap.Error(closeErr))
			}
		})
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.Snapshots = store
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.Snapshots = store
	case "memory":
		a.Snapshots = memory.NewBlobStore()
	case "none", "":
		// Snapshots disabled.
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (a *App) initEvents(ctx context.Context, cfg config.Config) error {
	if cfg.PubSub.ProjectID == "" {
		return nil
	}
	client, err := gcloudpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	a.cleanup = append(a.cleanup, func() {
		pub.Stop()
		if closeErr := client.Close(); closeErr != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(closeErr))
		}
	})
	a.Events = pub
	return nil
}

func (a *App) initNutrition(ctx context.Context, cfg config.Config) error {
	var providers []nutrition.Provider
	if cfg.Nutrition.USDAAPIKey != "" {
		providers = append(providers, nutrition.NewUSDAProvider(nutrition.USDAConfig{
			APIKey:  cfg.Nutrition.USDAAPIKey,
			BaseURL: cfg.Nutrition.USDABaseURL,
			Timeout: cfg.ProviderTimeout(),
		}))
	}
	if cfg.Nutrition.FatSecretClientID != "" {
		providers = append(providers, nutrition.NewFatSecretProvider(nutrition.FatSecretConfig{
			ClientID:     cfg.Nutrition.FatSecretClientID,
			ClientSecret: cfg.Nutrition.FatSecretSecret,
			Timeout:      cfg.ProviderTimeout(),
		}))
	}
	if len(providers) == 0 {
		a.logger.Info("no nutrition providers configured, enrichment disabled")
		return nil
	}

	var cache nutrition.Cache
	if cfg.DB.DSN != "" {
		pgCache, err := postgres.NewNutritionCache(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifeMins) * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("init nutrition cache: %w", err)
		}
		a.cleanup = append(a.cleanup, pgCache.Close)
		cache = pgCache
	} else {
		cache = memory.NewNutritionCache()
	}

	a.Nutrition = nutrition.NewEngine(cache, providers, a.logger.Named("nutrition"))
	return nil
}
