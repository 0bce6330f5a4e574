package engine

// Engine is the buddy-system allocation engine (components C1-C4, C7).
// It assumes a single mutator: no internal locking, no goroutines, no
// suspension points. Callers that need thread safety add their own
// lock around an Engine instance — see the allocator/mpool packages.
type Engine struct {
	arena []byte
	idx   orderIndex
	stats Stats

	initialized bool
	initFailed  bool
}

// New creates the engine but does not yet acquire the arena; the arena
// is acquired lazily on the first call to Allocate, mirroring the
// reference implementation's one-shot _init on first use. New never
// fails; Allocate surfaces ErrArenaUnavailable if lazy init fails.
func New() *Engine {
	return &Engine{}
}

// ensureArena is component C3: the one-shot arena initializer. It is
// idempotent — later calls are no-ops — and leaves stats at zero if
// the backing allocation could not be obtained, so later allocations
// fail cleanly via ErrArenaUnavailable instead of panicking.
func (e *Engine) ensureArena() error {
	if e.initialized {
		if e.initFailed {
			return ErrArenaUnavailable
		}
		return nil
	}
	e.initialized = true

	arena, err := acquireArena(ArenaSize)
	if err != nil {
		e.initFailed = true
		Error("failed to acquire %d byte arena: %v", ArenaSize, err)
		return ErrArenaUnavailable
	}
	e.arena = arena

	for i := 0; i < NumBlocks; i++ {
		block := &Metadata{
			offset:      uint64(i) * MaxBlockSize,
			blockSize:   MaxBlockSize,
			payloadSize: MaxBlockSize - metadataSize,
			isFree:      true,
		}
		e.idx.free[MaxOrder].insert(block)
	}

	e.stats.BlocksNum = NumBlocks
	e.stats.FreeBlocksNum = NumBlocks
	e.stats.AllBytes = NumBlocks * (MaxBlockSize - metadataSize)
	e.stats.FreeBytes = e.stats.AllBytes

	Info("arena initialized: %d bytes, %d order-%d blocks", ArenaSize, NumBlocks, MaxOrder)
	return nil
}

// acquireArena stands in for the reference implementation's aligned
// break extension (sbrk). Go exposes no sbrk; a single make([]byte,...)
// plays the same role since every block offset is computed relative to
// the arena's own base (offset 0), which trivially satisfies the
// alignment invariant (SPEC_FULL.md §4.3).
func acquireArena(size int) (arena []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			arena, err = nil, ErrArenaUnavailable
		}
	}()
	return make([]byte, size), nil
}

// Payload returns the caller-visible bytes of a live block: the arena
// slice between its header and the end of its block.
func (e *Engine) Payload(m *Metadata) []byte {
	start := m.offset + metadataSize
	end := m.offset + m.blockSize
	return e.arena[start:end]
}

// Stats returns a snapshot of the engine's O(1) counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// MetadataSize returns sizeof(metadata) as the spec's size_metadata
// accessor expects.
func MetadataSize() uint64 {
	return metadataSize
}
