//go:build linux

// Package ring implements the magic ring buffer from spec.md §4.1: a
// single-page byte queue whose backing memory is mapped twice
// contiguously so that any linear slice starting inside the first
// mapping can span the wrap point without copying.
//
// Construction follows the same double-mmap technique
// pault.ag/go/go-diskring's Ring uses for its disk-backed queue
// (reserve 2×SIZE with PROT_NONE, then two MAP_FIXED mappings over one
// fd) but backs the fd with memfd_create instead of a real file, since
// this buffer is purely in-process (spec.md §4.1, construction step 1).
package ring

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrNotEnoughSpace is returned by CommitPush/CommitPop when the
// requested count does not fit the buffer's current state.
var ErrNotEnoughSpace = errors.New("ring: not enough space")

// DefaultSize is one page on every Linux configuration this server
// targets.
const DefaultSize = 4096

// Buffer is a fixed-capacity byte queue backed by a double mapping of
// one anonymous, in-memory file. pos and len are the two counters
// spec.md §3 names; both are bounded by size, which itself never
// exceeds 65535 bytes so they fit in uint16 as specified.
type Buffer struct {
	fd   int
	base uintptr
	data []byte // view of length 2*size over base
	size uint32
	pos  uint16
	len  uint16
}

// New allocates a ring buffer of DefaultSize (one page).
func New() (*Buffer, error) {
	return NewSize(DefaultSize)
}

// NewSize allocates a ring buffer of the given size, which must be a
// positive multiple of the system page size and no larger than 65535
// bytes (pos/len are uint16 counters per spec.md §3). A non-default
// size exists only for tests; because it must be a page multiple, it
// is never smaller than one page.
func NewSize(size int) (*Buffer, error) {
	page := unix.Getpagesize()
	if size <= 0 || size%page != 0 {
		return nil, fmt.Errorf("ring: size %d must be a positive multiple of the page size %d", size, page)
	}
	if size > 1<<16-1 {
		return nil, fmt.Errorf("ring: size %d exceeds the uint16 counter range", size)
	}

	fd, err := unix.MemfdCreate("uringecho-ring", 0)
	if err != nil {
		return nil, fmt.Errorf("ring: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ring: ftruncate: %w", err)
	}

	base, err := rawMmap(0, uintptr(2*size), unix.PROT_NONE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE, -1, 0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ring: reserve address space: %w", err)
	}
	if _, err := rawMmap(base, uintptr(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_FIXED|unix.MAP_SHARED, fd, 0); err != nil {
		rawMunmap(base, uintptr(2*size))
		unix.Close(fd)
		return nil, fmt.Errorf("ring: map first half: %w", err)
	}
	if _, err := rawMmap(base+uintptr(size), uintptr(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_FIXED|unix.MAP_SHARED, fd, 0); err != nil {
		rawMunmap(base, uintptr(2*size))
		unix.Close(fd)
		return nil, fmt.Errorf("ring: map second half: %w", err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), 2*size)
	clear(data)

	return &Buffer{fd: fd, base: base, data: data, size: uint32(size)}, nil
}

// Cap returns SIZE, the buffer's fixed capacity.
func (b *Buffer) Cap() int { return int(b.size) }

// PageSize reports the system page size used to validate NewSize's
// alignment requirement.
func PageSize() int { return unix.Getpagesize() }

// Len returns the number of filled bytes currently queued.
func (b *Buffer) Len() int { return int(b.len) }

// Slice returns a read-only view of the filled region: data[pos:pos+len].
// Its length never exceeds SIZE and the caller never has to reason
// about wrap.
func (b *Buffer) Slice() []byte {
	return b.data[b.pos : int(b.pos)+int(b.len)]
}

// SizedSlice returns the first n bytes of the filled region.
// Precondition: n <= Len().
func (b *Buffer) SizedSlice(n int) []byte {
	return b.data[b.pos : int(b.pos)+n]
}

// AvailSlice returns a writable view of the free region:
// data[pos+len : pos+SIZE].
func (b *Buffer) AvailSlice() []byte {
	start := int(b.pos) + int(b.len)
	end := int(b.pos) + int(b.size)
	return b.data[start:end]
}

// Push copies min(SIZE-len, len(p)) bytes into the free region and
// returns the number copied. Used for in-process staging (tests,
// synchronous producers) — the kernel path uses CommitPush instead.
func (b *Buffer) Push(p []byte) int {
	avail := b.AvailSlice()
	n := copy(avail, p)
	b.len += uint16(n)
	return n
}

// CommitPush increments len by n without copying, for use after the
// kernel has already written n bytes into AvailSlice().
func (b *Buffer) CommitPush(n int) error {
	if n < 0 || n > int(b.size)-int(b.len) {
		return ErrNotEnoughSpace
	}
	b.len += uint16(n)
	return nil
}

// CommitPop advances pos by n modulo SIZE and decrements len by n, for
// use after the kernel has already read n bytes from Slice().
func (b *Buffer) CommitPop(n int) error {
	if n < 0 || n > int(b.len) {
		return ErrNotEnoughSpace
	}
	b.pos = uint16((int(b.pos) + n) % int(b.size))
	b.len -= uint16(n)
	return nil
}

// Reset zeroes len only, leaving pos unchanged. A subsequent reuse of
// the slot therefore starts from a possibly non-zero pos, which is
// safe: any pos in [0, SIZE) is legal when len is 0 (spec.md §9).
func (b *Buffer) Reset() {
	b.len = 0
}

// Close unmaps the double mapping and closes the backing memfd.
func (b *Buffer) Close() error {
	if b.data == nil {
		return nil
	}
	err := rawMunmap(b.base, uintptr(2*b.size))
	closeErr := unix.Close(b.fd)
	b.data = nil
	if err != nil {
		return err
	}
	return closeErr
}
