package allocator

import (
	"math"

	"github.com/shenjiangwei/buddymalloc/engine"
)

// Allocator is the public surface (C8): four entry points plus six
// counter accessors, dispatching each request to the buddy engine or
// the direct-mapped path by size.
type Allocator struct {
	engine *engine.Engine

	directBlocksNum uint64
	directBytes     uint64
}

// New creates an Allocator. The arena itself is acquired lazily, on the
// first call that needs it, mirroring the reference implementation's
// one-shot init-on-first-use.
func New() *Allocator {
	return &Allocator{engine: engine.New()}
}

// Allocate returns a handle to n payload bytes, or ErrInvalidSize /
// ErrOutOfMemory. Requests whose total size (payload + header) fits
// within the arena's largest order go to the buddy engine; larger
// requests go to the direct-mapped path (C5).
func (a *Allocator) Allocate(n uint64) (Ptr, error) {
	if n == 0 || n > MaxRequestSize {
		return Ptr{}, ErrInvalidSize
	}

	if n+engine.MetadataSize() > engine.MaxBlockSize {
		db, err := directMap(n)
		if err != nil {
			return Ptr{}, err
		}
		a.directBlocksNum++
		a.directBytes += db.payloadSize
		Debug("direct-mapped %d bytes", n)
		return Ptr{direct: db}, nil
	}

	meta, err := a.engine.Allocate(n)
	if err != nil {
		return Ptr{}, ErrOutOfMemory
	}
	return Ptr{meta: meta}, nil
}

// AllocateZeroed allocates count*size bytes and zeroes the payload,
// guarding against the count*size overflow none of the reference
// variants checked for (SPEC_FULL.md §9).
func (a *Allocator) AllocateZeroed(count, size uint64) (Ptr, error) {
	if count != 0 && size > math.MaxUint64/count {
		return Ptr{}, ErrInvalidSize
	}

	p, err := a.Allocate(count * size)
	if err != nil {
		return Ptr{}, err
	}

	payload := a.Bytes(p)
	for i := range payload {
		payload[i] = 0
	}
	return p, nil
}

// Free releases p. A nil Ptr is a no-op; a Ptr already freed is
// silently ignored (idempotent double free, spec §7).
func (a *Allocator) Free(p Ptr) error {
	if p.IsNil() {
		return nil
	}

	if p.direct != nil {
		if p.direct.freed {
			return nil
		}
		p.direct.freed = true
		if err := directUnmap(p.direct); err != nil {
			return err
		}
		a.directBlocksNum--
		a.directBytes -= p.direct.payloadSize
		return nil
	}

	a.engine.Free(p.meta)
	return nil
}

// Reallocate implements component C6: grow p to cover n payload bytes,
// in place when possible, relocating only when necessary. p == the
// null Ptr degenerates to Allocate; n == 0 (or above the cap) fails
// without touching p.
func (a *Allocator) Reallocate(p Ptr, n uint64) (Ptr, error) {
	if n == 0 || n > MaxRequestSize {
		return Ptr{}, ErrInvalidSize
	}
	if p.IsNil() {
		return a.Allocate(n)
	}
	if p.PayloadSize() >= n {
		return p, nil
	}

	if p.meta != nil {
		if a.expandArenaBlock(p, n) {
			Debug("realloc expanded in place to %d bytes", n)
			return p, nil
		}
	}

	newp, err := a.Allocate(n)
	if err != nil {
		return Ptr{}, err
	}

	copyLen := p.PayloadSize()
	if n < copyLen {
		copyLen = n
	}
	copy(a.Bytes(newp), a.Bytes(p)[:copyLen])

	if err := a.Free(p); err != nil {
		Error("realloc failed to free original block: %v", err)
	}

	return newp, nil
}

// Bytes returns the caller-visible payload for p.
func (a *Allocator) Bytes(p Ptr) []byte {
	switch {
	case p.meta != nil:
		return a.engine.Payload(p.meta)
	case p.direct != nil:
		// p.direct.mem may be larger than payloadSize (huge-page
		// mappings round up to a 2 MiB alignment); the caller only
		// ever sees the bytes it actually asked for.
		return p.direct.mem[:p.direct.payloadSize]
	default:
		return nil
	}
}

// NumFreeBlocks returns the count of blocks currently on a buddy free
// list.
func (a *Allocator) NumFreeBlocks() uint64 {
	return a.engine.Stats().FreeBlocksNum
}

// NumFreeBytes returns the sum of payload_size over free buddy blocks.
func (a *Allocator) NumFreeBytes() uint64 {
	return a.engine.Stats().FreeBytes
}

// NumAllocatedBlocks returns the legacy-meaning block count: every
// block the allocator currently tracks, allocated AND free, across the
// buddy arena, plus every live direct-mapped block (SPEC_FULL.md §9 —
// this is NOT "live user-held blocks").
func (a *Allocator) NumAllocatedBlocks() uint64 {
	return a.engine.Stats().BlocksNum + a.directBlocksNum
}

// NumAllocatedBytes returns the sum of payload_size over every
// live-or-free arena block plus every live direct-mapped block's
// payload (property P1).
func (a *Allocator) NumAllocatedBytes() uint64 {
	return a.engine.Stats().AllBytes + a.directBytes
}

// NumMetadataBytes returns the total header overhead across every
// block this allocator currently tracks.
func (a *Allocator) NumMetadataBytes() uint64 {
	return engine.MetadataSize() * a.NumAllocatedBlocks()
}

// SizeMetadata returns sizeof(metadata): the fixed per-block header
// overhead.
func (a *Allocator) SizeMetadata() uint64 {
	return engine.MetadataSize()
}
