package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italyre/casafeed/pkg/domain"
)

func TestCache(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cache := NewCacheWithClock(5*time.Minute, func() time.Time { return now })

	result := &domain.AggregationResult{TotalItems: 3}

	t.Run("miss on empty cache", func(t *testing.T) {
		_, ok := cache.Get("news")
		assert.False(t, ok)
	})

	t.Run("hit within ttl", func(t *testing.T) {
		cache.Set("news", result)

		now = base.Add(4*time.Minute + 59*time.Second)
		got, ok := cache.Get("news")
		require.True(t, ok)
		assert.Equal(t, result, got)
	})

	t.Run("miss after ttl", func(t *testing.T) {
		now = base.Add(5*time.Minute + 1*time.Second)
		_, ok := cache.Get("news")
		assert.False(t, ok)
	})

	t.Run("stale value still reachable for degraded mode", func(t *testing.T) {
		now = base.Add(2 * time.Hour)
		got, ok := cache.GetStale("news")
		require.True(t, ok)
		assert.Equal(t, result, got)
	})

	t.Run("clear empties everything", func(t *testing.T) {
		cache.Clear()
		_, ok := cache.GetStale("news")
		assert.False(t, ok)
	})
}
