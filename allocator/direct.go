package allocator

import (
	"golang.org/x/sys/unix"
)

// directMap acquires a private anonymous mapping sized n bytes of
// payload, component C5. Requests at or above HugePageThreshold first
// try a 2 MiB-aligned, huge-page-backed mapping; on failure the mapping
// falls back to a normal anonymous one transparently, matching
// malloc_4.cpp's HugePage smalloc branch (spec §4.5). Either path
// reports payloadSize: n — the huge-page mapping's extra alignment
// padding is backing only, never part of the caller-visible payload,
// so the same request produces the same observable Ptr.PayloadSize()
// whether or not the huge-page attempt happens to succeed on the host.
func directMap(n uint64) (*directBlock, error) {
	if n >= HugePageThreshold {
		aligned := roundUp(n, hugePageAlignment)
		mem, err := unix.Mmap(-1, 0, int(aligned),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
		if err == nil {
			Debug("huge-page mapping succeeded: %d bytes (payload %d)", aligned, n)
			return &directBlock{mem: mem, payloadSize: n}, nil
		}
		Debug("huge-page mapping failed (%v), falling back to a normal mapping", err)
	}

	mem, err := unix.Mmap(-1, 0, int(n),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		Error("anonymous mapping of %d bytes failed: %v", n, err)
		return nil, ErrOutOfMemory
	}
	return &directBlock{mem: mem, payloadSize: n}, nil
}

// directUnmap releases the entire mapping.
func directUnmap(b *directBlock) error {
	return unix.Munmap(b.mem)
}

func roundUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
