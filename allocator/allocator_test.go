package allocator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func init() {
	SetLogLevel(LogLevelNone)
}

func TestAllocator(t *testing.T) {
	a := New()

	t.Run("basic allocation and free", func(t *testing.T) {
		p, err := a.Allocate(4 * 1024)
		require.NoError(t, err)
		require.False(t, p.IsNil())
		require.GreaterOrEqual(t, p.PayloadSize(), uint64(4*1024))
		require.NoError(t, a.Free(p))
	})

	t.Run("large block goes direct", func(t *testing.T) {
		before := a.NumAllocatedBlocks()
		size := uint64(2 * 1024 * 1024)
		p, err := a.Allocate(size)
		require.NoError(t, err)
		require.NotNil(t, p.direct)
		require.Equal(t, size, p.PayloadSize())
		require.Equal(t, before+1, a.NumAllocatedBlocks())
		require.NoError(t, a.Free(p))
	})

	t.Run("huge-page-range request reports the exact payload size", func(t *testing.T) {
		// At or above HugePageThreshold, directMap tries a 2 MiB-aligned
		// huge-page mapping before falling back to a plain one. Either
		// way the caller-visible payload must be exactly what was
		// requested, never the alignment-padded backing size.
		size := uint64(HugePageThreshold + 1)
		p, err := a.Allocate(size)
		require.NoError(t, err)
		require.Equal(t, size, p.PayloadSize())
		require.Len(t, a.Bytes(p), int(size))
		require.NoError(t, a.Free(p))
	})

	t.Run("multiple small allocations", func(t *testing.T) {
		ptrs := make([]Ptr, 10)
		for i := range ptrs {
			p, err := a.Allocate(4 * 1024)
			require.NoError(t, err)
			ptrs[i] = p
		}
		for _, p := range ptrs {
			require.NoError(t, a.Free(p))
		}
	})

	t.Run("free of nil is a no-op", func(t *testing.T) {
		require.NoError(t, a.Free(Ptr{}))
	})

	t.Run("double free is idempotent", func(t *testing.T) {
		p, err := a.Allocate(256)
		require.NoError(t, err)
		require.NoError(t, a.Free(p))
		require.NoError(t, a.Free(p))
	})

	t.Run("double free of a direct block is idempotent", func(t *testing.T) {
		p, err := a.Allocate(8 * 1024 * 1024)
		require.NoError(t, err)
		require.NoError(t, a.Free(p))
		require.NoError(t, a.Free(p))
	})

	t.Run("zero size is rejected", func(t *testing.T) {
		_, err := a.Allocate(0)
		require.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("oversize request is rejected", func(t *testing.T) {
		_, err := a.Allocate(MaxRequestSize + 1)
		require.ErrorIs(t, err, ErrInvalidSize)
	})
}

func TestAllocateZeroed(t *testing.T) {
	a := New()

	t.Run("payload is zeroed", func(t *testing.T) {
		p, err := a.AllocateZeroed(16, 64)
		require.NoError(t, err)
		for _, b := range a.Bytes(p) {
			require.Zero(t, b)
		}
		require.NoError(t, a.Free(p))
	})

	t.Run("count*size overflow is rejected", func(t *testing.T) {
		_, err := a.AllocateZeroed(2, ^uint64(0))
		require.ErrorIs(t, err, ErrInvalidSize)
	})
}

func TestReallocate(t *testing.T) {
	a := New()

	t.Run("null pointer degenerates to allocate", func(t *testing.T) {
		p, err := a.Reallocate(Ptr{}, 128)
		require.NoError(t, err)
		require.False(t, p.IsNil())
		require.NoError(t, a.Free(p))
	})

	t.Run("shrinking request returns the same handle", func(t *testing.T) {
		p, err := a.Allocate(1000)
		require.NoError(t, err)
		p2, err := a.Reallocate(p, 10)
		require.NoError(t, err)
		require.Equal(t, p, p2)
		require.NoError(t, a.Free(p2))
	})

	t.Run("growth preserves payload bytes", func(t *testing.T) {
		p, err := a.Allocate(64)
		require.NoError(t, err)
		payload := a.Bytes(p)
		for i := range payload {
			payload[i] = byte(i)
		}

		p2, err := a.Reallocate(p, 4000)
		require.NoError(t, err)
		grown := a.Bytes(p2)
		for i := 0; i < 64; i++ {
			require.Equal(t, byte(i), grown[i])
		}
		require.NoError(t, a.Free(p2))
	})

	t.Run("growth past the arena's largest order relocates to direct", func(t *testing.T) {
		p, err := a.Allocate(64)
		require.NoError(t, err)
		p2, err := a.Reallocate(p, 8*1024*1024)
		require.NoError(t, err)
		require.NotNil(t, p2.direct)
		require.NoError(t, a.Free(p2))
	})

	t.Run("growth in place does not change the handle", func(t *testing.T) {
		// allocate and free a neighbor so there is room to expand into,
		// mirroring engine.TestExpandInPlace.
		first, err := a.Allocate(100)
		require.NoError(t, err)
		second, err := a.Allocate(100)
		require.NoError(t, err)
		require.NoError(t, a.Free(second))

		grown, err := a.Reallocate(first, 300)
		require.NoError(t, err)
		require.Equal(t, first, grown)
		// still arena-resident: in-place growth never moves to direct.
		require.Nil(t, grown.direct)
		require.NoError(t, a.Free(grown))
	})
}

func TestCounters(t *testing.T) {
	a := New()

	before := a.NumAllocatedBytes()
	p, err := a.Allocate(1000)
	require.NoError(t, err)
	require.Greater(t, a.NumAllocatedBytes(), before)
	require.Equal(t, a.SizeMetadata()*a.NumAllocatedBlocks(), a.NumMetadataBytes())
	require.NoError(t, a.Free(p))
}

func TestInvalidFreeOfZeroValueDoesNotPanic(t *testing.T) {
	a := New()
	require.NotPanics(t, func() {
		require.NoError(t, a.Free(Ptr{}))
	})
}

func BenchmarkAllocate(b *testing.B) {
	sizes := []uint64{
		4 * 1024,
		16 * 1024,
		64 * 1024,
		1 * 1024 * 1024,
		8 * 1024 * 1024,
	}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			a := New()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				p, err := a.Allocate(size)
				if err != nil {
					break
				}
				a.Free(p)
			}
		})
	}
}
