package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clk.Now
	return c, clk
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", 20)

	clk.t = clk.t.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 20, v)

	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())
	c.Purge()
	assert.Zero(t, c.Size())
	c.Set("c", 3)
	assert.Equal(t, 1, c.Size())
}

func TestManagerCleanNowAndStop(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", 1)
	clk.t = clk.t.Add(2 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
