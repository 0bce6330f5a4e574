// Package engine implements the buddy-system allocation engine: arena
// initialization, order selection, splitting and coalescing, and the
// O(1) statistics that sit on top of every mutation.
package engine

import "errors"

// Error definitions for the buddy engine.
var (
	// ErrSizeTooLarge is returned when a request's order exceeds MaxOrder.
	ErrSizeTooLarge = errors.New("requested size is too large for the buddy arena")
	// ErrNoSpaceAvailable is returned when no free block of a suitable
	// order exists and none can be split from a higher order.
	ErrNoSpaceAvailable = errors.New("no space available")
	// ErrBlockNotFound names a block that is not currently in any
	// allocated list. No function in this package returns it: Free
	// reports nothing.
	ErrBlockNotFound = errors.New("block not found")
	// ErrArenaUnavailable is returned when the arena failed to
	// initialize and every subsequent allocation fails cleanly.
	ErrArenaUnavailable = errors.New("arena unavailable")
)
