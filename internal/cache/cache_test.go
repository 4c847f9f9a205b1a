package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](5 * time.Minute).WithClock(func() time.Time { return now })

	c.Set("g1", 7)
	v, ok := c.Get("g1")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	now = now.Add(4 * time.Minute)
	_, ok = c.Get("g1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("g1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheDelete(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("g1", "a")
	c.Delete("g1")
	_, ok := c.Get("g1")
	assert.False(t, ok)
}

func TestCacheDisabled(t *testing.T) {
	c := New[string](0)
	c.Set("g1", "a")
	_, ok := c.Get("g1")
	assert.False(t, ok)

	var nilCache *Cache[string]
	nilCache.Set("g1", "a")
	_, ok = nilCache.Get("g1")
	assert.False(t, ok)
}
