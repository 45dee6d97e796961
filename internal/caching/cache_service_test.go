package caching

import (
	"context"
	"testing"
	"time"

	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_LocationTTL(t *testing.T) {
	cache := NewMemoryCacheService().(*memoryCacheService)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	loc := &models.Location{ID: uuid.New(), Name: "Warehouse-1", Status: models.LocationActive}
	require.NoError(t, cache.SetLocation(ctx, loc, 10*time.Minute))

	got, err := cache.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Warehouse-1", got.Name)

	now = now.Add(11 * time.Minute)
	got, err = cache.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_DeleteLocation(t *testing.T) {
	cache := NewMemoryCacheService()
	ctx := context.Background()
	loc := &models.Location{ID: uuid.New()}

	require.NoError(t, cache.SetLocation(ctx, loc, time.Minute))
	require.NoError(t, cache.DeleteLocation(ctx, loc.ID))

	got, err := cache.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_RateLimitWindow(t *testing.T) {
	cache := NewMemoryCacheService().(*memoryCacheService)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limited, err := cache.IsRateLimited(ctx, "override:actor", 2, time.Hour)
		require.NoError(t, err)
		assert.False(t, limited)
	}
	limited, err := cache.IsRateLimited(ctx, "override:actor", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, limited)

	now = now.Add(61 * time.Minute)
	limited, err = cache.IsRateLimited(ctx, "override:actor", 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, limited)
}
