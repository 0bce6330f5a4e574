package mpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/buddymalloc/allocator"
)

func TestPoolAllocateAndFree(t *testing.T) {
	p, err := New(allocator.New())
	require.NoError(t, err)
	defer p.Close()

	ptr, err := p.Allocate(4 * KB)
	require.NoError(t, err)
	require.NoError(t, p.Free(ptr))

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.TotalAllocations)
	require.Equal(t, uint64(1), stats.PoolHits)
	require.Equal(t, uint64(1), stats.TotalFrees)
	require.Equal(t, uint64(1), stats.PoolFreeHits)
}

func TestPoolMissFallsThroughToAllocator(t *testing.T) {
	p, err := New(allocator.New())
	require.NoError(t, err)
	defer p.Close()

	// Larger than any bucket serves: dispatches straight to the
	// wrapped Allocator's direct-map path.
	ptr, err := p.Allocate(8 * MB)
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.PoolMisses)

	require.NoError(t, p.Free(ptr))
	require.Equal(t, uint64(1), p.Stats().PoolFreeMisses)
}

func TestPoolConcurrentAccess(t *testing.T) {
	p, err := New(allocator.New())
	require.NoError(t, err)
	defer p.Close()

	done := make(chan allocator.Ptr, 8)
	for i := 0; i < 8; i++ {
		go func() {
			ptr, err := p.Allocate(16 * KB)
			require.NoError(t, err)
			done <- ptr
		}()
	}

	var ptrs []allocator.Ptr
	for i := 0; i < 8; i++ {
		ptrs = append(ptrs, <-done)
	}
	for _, ptr := range ptrs {
		require.NoError(t, p.Free(ptr))
	}
}
