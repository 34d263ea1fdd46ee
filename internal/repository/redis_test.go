package repository

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = []models.Slot{
	{Start: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC), Status: models.SlotFree},
	{Start: time.Date(2030, 1, 7, 9, 30, 0, 0, time.UTC), Status: models.SlotAccepted, BookingID: 4, CustomerName: "Ann"},
}

func TestRedisScheduleCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	cache := NewRedisScheduleCache(client, time.Minute)

	t.Run("Miss", func(t *testing.T) {
		slots, ok, err := cache.Get(ctx, 1, "2030-01-07")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, slots)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 1, "2030-01-07", day))

		got, ok, err := cache.Get(ctx, 1, "2030-01-07")
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 2)
		assert.Equal(t, models.SlotAccepted, got[1].Status)
		assert.Equal(t, "Ann", got[1].CustomerName)
		assert.True(t, got[0].Start.Equal(day[0].Start))
	})

	t.Run("Expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 2, "2030-01-07", day))
		s.FastForward(2 * time.Minute)

		_, ok, err := cache.Get(ctx, 2, "2030-01-07")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 3, "2030-01-07", day))
		require.NoError(t, cache.Invalidate(ctx, 3, "2030-01-07"))

		_, ok, err := cache.Get(ctx, 3, "2030-01-07")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CorruptEntry", func(t *testing.T) {
		require.NoError(t, s.Set(scheduleKey(4, "2030-01-07"), "not json"))
		_, _, err := cache.Get(ctx, 4, "2030-01-07")
		assert.Error(t, err)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, _, err := cache.Get(ctx, 1, "2030-01-07")
		assert.Error(t, err)
	})
}

func TestRedisScheduleCacheNilClient(t *testing.T) {
	cache := NewRedisScheduleCache(nil, time.Minute)
	ctx := context.Background()

	_, _, err := cache.Get(ctx, 1, "2030-01-07")
	assert.Error(t, err)
	assert.Error(t, cache.Set(ctx, 1, "2030-01-07", day))
	assert.Error(t, cache.Invalidate(ctx, 1, "2030-01-07"))
}
