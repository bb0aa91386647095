package cache

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		_, err := New[string, int](capacity)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCapacity))
	}

	c, err := New[string, int](1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestDefaultCapacity(t *testing.T) {
	c := Default[string, int]()
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)
}

func TestSetGet(t *testing.T) {
	c, err := New[string, int](10)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestSetOverwriteKeepsSize(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	assert.Equal(t, 2, c.Len())
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	// The overwrite refreshed "a", so adding a third entry evicts "b".
	c.Set("c", 3)
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
}

func TestEvictionOrder(t *testing.T) {
	c, err := New[string, int](3)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)
	assert.False(t, c.Has("b"), "least recently used entry is evicted")
	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestHasDoesNotTouch(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)

	// Has must not refresh "a"; the next insert should still evict it.
	assert.True(t, c.Has("a"))
	c.Set("c", 3)
	assert.False(t, c.Has("a"))

	// Has must not move the stat counters either.
	st := c.Stats()
	assert.Equal(t, uint64(0), st.Hits)
	assert.Equal(t, uint64(0), st.Misses)
}

func TestDelete(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	c.Set("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 0, c.Len())
}

func TestStats(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss
	c.Set("b", 2)
	c.Set("c", 3) // evicts "a"

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, 2, st.Capacity)
	assert.InDelta(t, 66.6, st.HitRate, 0.1)
}

func TestClearKeepsStats(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Get("a")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Hits)

	c.ResetStats()
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestCleanup(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Cleanup()

	st := c.Stats()
	assert.Equal(t, 0, st.Size)
	assert.Equal(t, uint64(0), st.Hits)
	assert.Equal(t, uint64(0), st.Misses)
}

func TestIterationOrder(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // refresh: order is now b, c, a

	assert.Equal(t, []string{"b", "c", "a"}, c.Keys())
	assert.Equal(t, []int{2, 3, 1}, c.Values())

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry[string, int]{Key: "b", Value: 2}, entries[0])
	assert.Equal(t, Entry[string, int]{Key: "a", Value: 1}, entries[2])

	var visited []string
	c.ForEach(func(k string, _ int) { visited = append(visited, k) })
	assert.Equal(t, []string{"b", "c", "a"}, visited)
}

func TestConcurrentAccessExactStats(t *testing.T) {
	c, err := New[int, int](64)
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		c.Set(i, i)
	}

	const (
		goroutines = 8
		perG       = 500
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if i%2 == 0 {
					c.Get(i % 64) // hit
				} else {
					c.Get(1000 + i) // miss
				}
			}
		}(g)
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, uint64(goroutines*perG/2), st.Hits)
	assert.Equal(t, uint64(goroutines*perG/2), st.Misses)
}

func TestCapacityOne(t *testing.T) {
	c, err := New[string, int](1)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}
