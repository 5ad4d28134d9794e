package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_NoPolicyNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[string, int](CachePolicy{})
	c.now = clock.Now

	c.Set("a", 1)
	clock.Advance(365 * 24 * time.Hour)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_TTL(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[string, int](CachePolicy{TTL: 5 * time.Minute})
	c.now = clock.Now

	c.Set("a", 1)

	t.Run("fresh within ttl", func(t *testing.T) {
		clock.Advance(4 * time.Minute)
		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("stale after ttl", func(t *testing.T) {
		clock.Advance(time.Minute)
		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
	})

	t.Run("set refreshes capture time", func(t *testing.T) {
		c.Set("a", 2)
		clock.Advance(4 * time.Minute)
		c.Set("a", 3)
		clock.Advance(4 * time.Minute)
		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 3, v)
	})
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache[string, int](CachePolicy{MaxEntries: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a is now most recently used
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := NewCache[string, int](CachePolicy{})
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
