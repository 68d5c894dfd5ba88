package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recipeharvest/internal/app"
	"recipeharvest/internal/config"
)

func TestNew_DefaultsToMemoryStores(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Jobs)
	assert.NotNil(t, a.Recipes)
	assert.NotNil(t, a.Clock)
	assert.Nil(t, a.Snapshots, "snapshots default off")
	assert.Nil(t, a.Events, "events default off")
	assert.Nil(t, a.Nutrition, "no providers configured")
}

func TestNew_MemorySnapshotBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Storage: config.StorageConfig{Backend: "memory"}}
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Snapshots)
}

func TestNew_LocalSnapshotBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Storage: config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}}
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Snapshots)
}

func TestNew_UnknownSnapshotBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Storage: config.StorageConfig{Backend: "tape"}}
	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNew_NutritionEngineFromProviders(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Nutrition: config.NutritionConfig{USDAAPIKey: "test-key"}}
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Nutrition)
}
