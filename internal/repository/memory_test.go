package repository

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryScheduleCache(t *testing.T) {
	cache := NewMemoryScheduleCache(time.Minute)
	now := time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, "2030-01-07", day))

	got, ok, err := cache.Get(ctx, 1, "2030-01-07")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)

	// callers may mutate what they get back
	got[0].Status = models.SlotUnavailable
	again, _, _ := cache.Get(ctx, 1, "2030-01-07")
	assert.Equal(t, models.SlotFree, again[0].Status)

	_, ok, _ = cache.Get(ctx, 1, "2030-01-08")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, 1, "2030-01-07")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after ttl")

	require.NoError(t, cache.Set(ctx, 1, "2030-01-07", day))
	require.NoError(t, cache.Invalidate(ctx, 1, "2030-01-07"))
	_, ok, _ = cache.Get(ctx, 1, "2030-01-07")
	assert.False(t, ok)
}
