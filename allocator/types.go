package allocator

import "github.com/shenjiangwei/buddymalloc/engine"

// Tunable constants (§6): fixed by the design, not configuration.
const (
	// MaxRequestSize is the largest payload a single request may ask
	// for (spec's MAX_MEM).
	MaxRequestSize = 100_000_000
	// HugePageThreshold is the payload size at or above which the
	// direct-mapped path first attempts a huge-page-backed mapping.
	HugePageThreshold = 4 * 1024 * 1024
	// hugePageAlignment is the alignment huge-page mappings round up
	// to (2 MiB, the common x86-64 huge page size).
	hugePageAlignment = 2 * 1024 * 1024
)

// directBlock tracks one OS-mapped block that bypasses the buddy
// arena entirely (component C5). It is never inserted into any order
// list; a direct-mapped block is reachable only through the Ptr that
// carries it (Ptr.direct). mem is the
// exact slice returned by unix.Mmap and may be larger than
// payloadSize — a huge-page mapping rounds up to a 2 MiB alignment —
// but payloadSize is always the caller's original request, so
// Ptr.PayloadSize() never reveals that rounding.
type directBlock struct {
	mem         []byte
	payloadSize uint64
	freed       bool
}

// Ptr is the opaque handle Allocate/Reallocate return in place of a raw
// pointer. The zero value represents NULL: Free(Ptr{}) and
// Reallocate(Ptr{}, n) both follow the spec's null-handling rules.
// Exactly one of the two fields is non-nil for a live Ptr.
type Ptr struct {
	meta   *engine.Metadata
	direct *directBlock
}

// IsNil reports whether p is the null handle.
func (p Ptr) IsNil() bool {
	return p.meta == nil && p.direct == nil
}

// PayloadSize returns the bytes usable by the caller through p, or 0
// for the null handle.
func (p Ptr) PayloadSize() uint64 {
	switch {
	case p.meta != nil:
		return p.meta.PayloadSize()
	case p.direct != nil:
		return p.direct.payloadSize
	default:
		return 0
	}
}
