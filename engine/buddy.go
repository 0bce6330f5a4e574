package engine

// Allocate is component C4's order selection plus allocation. It
// computes the smallest order whose block size covers n bytes of
// payload plus one metadata header, splitting a higher free block down
// if no block of that order is free, and reports ErrSizeTooLarge if
// even MaxOrder is insufficient (callers route those requests to a
// direct-mapped path instead) or ErrNoSpaceAvailable if the arena is
// exhausted.
func (e *Engine) Allocate(n uint64) (*Metadata, error) {
	if err := e.ensureArena(); err != nil {
		return nil, err
	}

	order := orderOf(n + metadataSize)
	if order > MaxOrder {
		return nil, ErrSizeTooLarge
	}

	if err := e.ensureFree(order); err != nil {
		Error("no space for order %d allocation (%d bytes requested)", order, n)
		return nil, err
	}

	block := e.idx.free[order].popHead()
	e.idx.allocated[order].insert(block)
	block.isFree = false
	e.stats.FreeBlocksNum--
	e.stats.FreeBytes -= block.payloadSize

	Debug("allocated order %d block at offset %d (%d bytes payload)", order, block.offset, block.payloadSize)
	return block, nil
}

// ensureFree guarantees free[order] is non-empty by splitting down from
// the smallest higher order that has a free block, per spec §4.4 step
// 2-3. It returns ErrNoSpaceAvailable if no order above it has a free
// block to split.
func (e *Engine) ensureFree(order int) error {
	if e.idx.free[order].length > 0 {
		return nil
	}
	if order == MaxOrder {
		return ErrNoSpaceAvailable
	}

	source := -1
	for i := order + 1; i <= MaxOrder; i++ {
		if e.idx.free[i].length > 0 {
			source = i
			break
		}
	}
	if source == -1 {
		return ErrNoSpaceAvailable
	}

	for cur := source; cur > order; cur-- {
		parent := e.idx.free[cur].popHead()
		half := orderSize(cur - 1)

		// The lower half retains the parent's metadata address; the
		// upper half's header sits at parent_addr + half_size.
		lower := parent
		lower.blockSize = half
		lower.payloadSize = half - metadataSize
		lower.isFree = true

		upper := &Metadata{
			offset:      parent.offset + half,
			blockSize:   half,
			payloadSize: half - metadataSize,
			isFree:      true,
		}

		e.idx.free[cur-1].insert(lower)
		e.idx.free[cur-1].insert(upper)

		e.stats.BlocksNum++
		e.stats.FreeBlocksNum++
		e.stats.FreeBytes -= metadataSize
		e.stats.AllBytes -= metadataSize

		Debug("split order %d block at offset %d into two order %d blocks", cur, parent.offset, cur-1)
	}

	return nil
}

// Free is component C4's free path: move the block back to its order's
// free list and coalesce to fixed point (spec §4.4, §5). m must be a
// block this engine handed out; no further validation is done here or
// in the allocator package, which passes the *Metadata held in its Ptr
// handle straight through. A double free is detected purely through
// m.isFree and ignored, never panicked on.
func (e *Engine) Free(m *Metadata) {
	if m == nil || m.isFree {
		return
	}

	order := orderOf(m.blockSize)
	e.idx.allocated[order].remove(m)
	m.isFree = true
	e.idx.free[order].insert(m)

	e.stats.FreeBlocksNum++
	e.stats.FreeBytes += m.payloadSize

	e.coalesce(order)
}

// coalesce merges freed buddies upward to fixed point, starting at
// order. Because every free list is address-ordered and every entry in
// free[order] shares the same block size, a buddy pair (when one
// exists) is always adjacent in the list — the same property the
// reference _merge_buddies relies on.
func (e *Engine) coalesce(order int) {
	for order < MaxOrder {
		merged := false
		for cur := e.idx.free[order].head; cur != nil && cur.next != nil; cur = cur.next {
			if cur.offset^cur.blockSize != cur.next.offset {
				continue
			}

			next := cur.next
			e.idx.free[order].remove(cur)
			e.idx.free[order].remove(next)

			cur.blockSize += next.blockSize
			cur.payloadSize = cur.blockSize - metadataSize
			e.idx.free[order+1].insert(cur)

			e.stats.BlocksNum--
			e.stats.FreeBlocksNum--
			e.stats.FreeBytes += metadataSize
			e.stats.AllBytes += metadataSize

			Debug("coalesced order %d pair at offsets %d/%d into order %d", order, cur.offset, next.offset, order+1)
			merged = true
			break
		}
		if !merged {
			return
		}
		order++
	}
}

// findFree looks up a specific offset within one order's free list.
func (e *Engine) findFree(order int, offset uint64) *Metadata {
	for cur := e.idx.free[order].head; cur != nil; cur = cur.next {
		if cur.offset == offset {
			return cur
		}
	}
	return nil
}

// probeExpansion walks m's buddy chain forward (higher addresses only,
// the Open Question resolution recorded in DESIGN.md: a block
// only ever extends into the addresses above it, so its own payload
// bytes never move) one order at a time, without mutating any state,
// and reports whether enough free buddies exist to cover target bytes
// of payload.
func (e *Engine) probeExpansion(m *Metadata, target uint64) ([]*Metadata, bool) {
	var chain []*Metadata
	order := orderOf(m.blockSize)
	size := m.blockSize
	offset := m.offset

	for size-metadataSize < target {
		if order == MaxOrder {
			break
		}
		buddyOffset := offset ^ size
		if buddyOffset < offset {
			break // m is the upper buddy at this level; stop, never go backward
		}
		neighbor := e.findFree(order, buddyOffset)
		if neighbor == nil {
			break
		}
		chain = append(chain, neighbor)
		size += neighbor.blockSize
		order = orderOf(size)
	}

	return chain, size-metadataSize >= target
}

// commitExpansion absorbs a chain of free buddies (as returned by a
// successful probeExpansion) into m, one order at a time, and relinks
// m into its new order's allocated list if the order changed.
func (e *Engine) commitExpansion(m *Metadata, chain []*Metadata) {
	oldOrder := orderOf(m.blockSize)

	for _, neighbor := range chain {
		order := orderOf(m.blockSize)
		e.idx.free[order].remove(neighbor)

		m.blockSize += neighbor.blockSize
		m.payloadSize = m.blockSize - metadataSize

		e.stats.BlocksNum--
		e.stats.FreeBlocksNum--
		e.stats.FreeBytes += metadataSize
		e.stats.AllBytes += metadataSize

		Debug("realloc absorbed free buddy at offset %d into block at offset %d", neighbor.offset, m.offset)
	}

	newOrder := orderOf(m.blockSize)
	if newOrder != oldOrder {
		e.idx.allocated[oldOrder].remove(m)
		e.idx.allocated[newOrder].insert(m)
	}
}

// ExpandInPlace is component C6's engine-level primitive: try to grow
// m, an allocated block, to cover target bytes of payload by merging
// consecutive forward free buddies. It either commits the whole merge
// and returns true, or leaves m completely untouched and returns false
// — there is no partial-merge-then-fail outcome, matching spec §4.6
// step 3/4 ("If the accumulated size satisfies the request, commit...
// If in-place expansion cannot satisfy the request, caller must
// relocate").
func (e *Engine) ExpandInPlace(m *Metadata, target uint64) bool {
	chain, ok := e.probeExpansion(m, target)
	if !ok {
		return false
	}
	e.commitExpansion(m, chain)
	return true
}
