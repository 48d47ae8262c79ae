package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetHonorsTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCacheWithNow[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	stale, ok := c.GetStale("a")
	assert.True(t, ok)
	assert.Equal(t, 1, stale)
}

func TestDeleteRemovesStale(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("k", "v", 0)
	c.Delete("k")

	_, ok := c.GetStale("k")
	assert.False(t, ok)
}
