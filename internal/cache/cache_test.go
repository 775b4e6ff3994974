package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	c := New[[]byte](100, time.Hour)

	_, ok := c.Get("barangays/10/512/256")
	assert.False(t, ok)

	data := []byte("mvt")
	c.Put("barangays/10/512/256", data)
	got, ok := c.Get("barangays/10/512/256")
	require.True(t, ok)
	assert.Equal(t, data, got)

	_, ok = c.Get("barangays/10/512/257")
	assert.False(t, ok)
}

func TestCache_TTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[string](10, time.Minute, WithClock(clock))

	c.Put("narrative:1", "text")
	clock.Advance(59 * time.Second)
	v, ok := c.Get("narrative:1")
	require.True(t, ok)
	assert.Equal(t, "text", v)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("narrative:1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestCache_PutRefreshesTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[int](10, time.Minute, WithClock(clock))

	c.Put("k", 1)
	clock.Advance(50 * time.Second)
	c.Put("k", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[int](10, 0, WithClock(clock))
	c.Put("k", 1)
	clock.Advance(24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](3, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// touch a so b becomes the oldest
	_, _ = c.Get("a")
	c.Put("d", 4)

	_, ok := c.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New[int](10, time.Hour)
	c.Put("barangays/1/0/0", 1)
	c.Put("barangays/2/0/0", 2)
	c.Put("municipalities/1/0/0", 3)

	assert.Equal(t, 2, c.InvalidatePrefix("barangays/"))
	assert.Equal(t, 1, c.Len())

	c.Delete("municipalities/1/0/0")
	assert.Equal(t, 0, c.Len())

	c.Put("x", 1)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Stats(t *testing.T) {
	c := New[int](5, time.Hour)
	c.Put("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.MaxEntries)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New[int](0, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](50, time.Hour)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d/%d", g, i%20)
				c.Put(key, i)
				_, _ = c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
