package query

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheGetCachesResult(t *testing.T) {
	c := New()
	var calls int32
	key := Key{URI: 1, Version: 1, Name: "symbols"}

	compute := func() any {
		atomic.AddInt32(&calls, 1)
		return "table"
	}

	require.Equal(t, "table", c.Get(key, compute))
	require.Equal(t, "table", c.Get(key, compute))
	require.EqualValues(t, 1, calls, "compute must run once per key")
}

func TestCacheGetDedupsConcurrentMisses(t *testing.T) {
	c := New()
	var calls int32
	key := Key{URI: 1, Version: 1, Name: "def_types"}
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = c.Get(key, func() any {
				atomic.AddInt32(&calls, 1)
				return 42
			})
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, calls, "concurrent misses for the same key must share one computation")
	for _, r := range results {
		require.Equal(t, 42, r)
	}
}

func TestCacheInvalidateDropsOnlyThatURI(t *testing.T) {
	c := New()
	c.Get(Key{URI: 1, Version: 1, Name: "a"}, func() any { return 1 })
	c.Get(Key{URI: 2, Version: 1, Name: "a"}, func() any { return 2 })
	require.Equal(t, 2, c.Len())

	c.Invalidate(1)
	require.Equal(t, 1, c.Len())

	var calls int32
	c.Get(Key{URI: 1, Version: 1, Name: "a"}, func() any {
		atomic.AddInt32(&calls, 1)
		return 1
	})
	require.EqualValues(t, 1, calls, "invalidated key must recompute")
}
