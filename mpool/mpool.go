// Package mpool is the thread-safety collaborator spec.md §1 pushes
// locking into: it wraps one *allocator.Allocator behind a single
// mutex and layers a size-bucketed free-block cache on top, so
// repeated same-size request/release cycles skip the buddy engine
// entirely.
package mpool

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/shenjiangwei/buddymalloc/allocator"
)

const (
	MB = 1024 * 1024
	KB = 1024

	// Pool sizing is bounded by the wrapped Allocator's real backing
	// memory, not by request-size class alone. The small and medium
	// buckets draw from engine.ArenaSize (4 MiB of real bytes, split
	// into 32 order-10 128 KiB blocks); a size near a bucket's upper
	// bound can round up to a whole extra buddy order
	// (engine.orderOf rounds a 65535-byte request up to a full 128 KiB
	// block, for instance), so bucket counts and ranges are chosen so
	// that even every block landing on its worst-case order still fits
	// well inside the arena (see DESIGN.md's mpool entry for the exact
	// budget). The large bucket (1-2 MB) always exceeds
	// engine.MaxBlockSize and is served by the direct-mapped path,
	// which maps real anonymous memory per block and isn't limited by
	// the arena at all.
	SmallPoolSize  = 16 // 4KB-8KB
	MediumPoolSize = 16 // 32KB-62KB
	LargePoolSize  = 16 // 1MB-2MB
)

// Stats reports the cache's hit/miss behavior. Allocation counts
// saturate at the same legacy meaning as allocator.Allocator's own
// counters: they count requests, not live holders.
type Stats struct {
	TotalAllocations uint64
	PoolHits         uint64
	PoolMisses       uint64
	TotalFrees       uint64
	PoolFreeHits     uint64
	PoolFreeMisses   uint64
}

type bucket struct {
	ptrs  []allocator.Ptr
	sizes []uint64
	used  []bool
}

func newBucket(n int, minSize, span uint64, a *allocator.Allocator) (bucket, error) {
	b := bucket{
		ptrs:  make([]allocator.Ptr, n),
		sizes: make([]uint64, n),
		used:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		size := minSize + uint64(rand.Int63n(int64(span)))
		p, err := a.Allocate(size)
		if err != nil {
			return bucket{}, fmt.Errorf("pre-allocating pool block: %w", err)
		}
		b.ptrs[i] = p
		b.sizes[i] = size
	}
	return b, nil
}

func (b *bucket) take(size uint64) (allocator.Ptr, bool) {
	for i := range b.ptrs {
		if !b.used[i] && b.sizes[i] >= size {
			b.used[i] = true
			return b.ptrs[i], true
		}
	}
	return allocator.Ptr{}, false
}

func (b *bucket) release(p allocator.Ptr) bool {
	for i := range b.ptrs {
		if b.ptrs[i] == p {
			b.used[i] = false
			return true
		}
	}
	return false
}

func (b *bucket) closeAll(a *allocator.Allocator) error {
	for _, p := range b.ptrs {
		if err := a.Free(p); err != nil {
			return err
		}
	}
	return nil
}

// Pool is a locking, cache-backed front end for one Allocator.
type Pool struct {
	mu sync.Mutex

	small  bucket
	medium bucket
	large  bucket

	allocator *allocator.Allocator
	stats     Stats
}

// New builds a Pool on top of a. Pre-allocating the three buckets can
// fail if the arena and direct-map path run out of room before the
// pools fill; with the sizes above that should not happen against a
// freshly constructed Allocator (see DESIGN.md).
func New(a *allocator.Allocator) (*Pool, error) {
	p := &Pool{allocator: a}

	var err error
	if p.small, err = newBucket(SmallPoolSize, 4*KB, 4*KB, a); err != nil {
		return nil, fmt.Errorf("small pool: %w", err)
	}
	if p.medium, err = newBucket(MediumPoolSize, 32*KB, 30*KB, a); err != nil {
		return nil, fmt.Errorf("medium pool: %w", err)
	}
	if p.large, err = newBucket(LargePoolSize, 1*MB, 1*MB, a); err != nil {
		return nil, fmt.Errorf("large pool: %w", err)
	}
	return p, nil
}

// Allocate serves size out of the matching cache bucket when a slot is
// free; otherwise it falls through to the wrapped Allocator.
func (p *Pool) Allocate(size uint64) (allocator.Ptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalAllocations++

	var b *bucket
	switch {
	case size <= 64*KB:
		b = &p.small
	case size <= 1*MB:
		b = &p.medium
	case size <= 4*MB:
		b = &p.large
	}

	if b != nil {
		if ptr, ok := b.take(size); ok {
			p.stats.PoolHits++
			return ptr, nil
		}
	}

	p.stats.PoolMisses++
	return p.allocator.Allocate(size)
}

// Free returns ptr to whichever bucket owns it, or to the wrapped
// Allocator if it came from an overflow allocation.
func (p *Pool) Free(ptr allocator.Ptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalFrees++

	for _, b := range []*bucket{&p.small, &p.medium, &p.large} {
		if b.release(ptr) {
			p.stats.PoolFreeHits++
			return nil
		}
	}

	p.stats.PoolFreeMisses++
	return p.allocator.Free(ptr)
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close releases every block the pool pre-allocated, pooled or not.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.small.closeAll(p.allocator); err != nil {
		return fmt.Errorf("closing small pool: %w", err)
	}
	if err := p.medium.closeAll(p.allocator); err != nil {
		return fmt.Errorf("closing medium pool: %w", err)
	}
	if err := p.large.closeAll(p.allocator); err != nil {
		return fmt.Errorf("closing large pool: %w", err)
	}
	return nil
}
