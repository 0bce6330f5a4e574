package allocator

// expandArenaBlock is component C6 for arena-resident pointers: try to
// grow an allocated buddy block in place by merging its free buddy
// chain, without relocating. See engine.ExpandInPlace for the actual
// probe/commit mechanics; n is passed through unchanged, since both
// this package and the engine measure the target in payload bytes.
func (a *Allocator) expandArenaBlock(p Ptr, n uint64) bool {
	return a.engine.ExpandInPlace(p.meta, n)
}
