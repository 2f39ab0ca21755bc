//go:build linux

package uring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring is a single submission/completion ring, sized as spec.md §4.3
// requires (capacity 1024 entries by default, see config.Config).
type Ring struct {
	fd int

	sqMem   []byte
	cqMem   []byte
	sqesMem []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray unsafe.Pointer

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   unsafe.Pointer

	sqes    unsafe.Pointer
	entries uint32

	localTail uint32 // next slot to fill, ahead of the published *sqTail
	pending   uint32 // entries filled since the last Submit
}

// New creates an io_uring instance with room for entries submissions
// (rounded up to a power of two by the kernel).
func New(entries uint32) (*Ring, error) {
	var p params
	fd, err := ioURingSetup(entries, &p)
	if err != nil {
		return nil, fmt.Errorf("uring: io_uring_setup: %w", err)
	}

	r := &Ring{fd: fd, entries: p.SQEntries}
	r.localTail = 0

	if err := r.mmapRings(&p); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

func (r *Ring) mmapRings(p *params) error {
	sqRingSize := int(p.SQOff.Array + p.SQEntries*4)
	sqMem, err := unix.Mmap(r.fd, offSQRing, sqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("uring: mmap sq ring: %w", err)
	}
	r.sqMem = sqMem

	if p.Features&featSingleMmap != 0 {
		r.cqMem = sqMem
	} else {
		cqRingSize := int(p.CQOff.CQEs + p.CQEntries*uint32(unsafe.Sizeof(CQE{})))
		cqMem, err := unix.Mmap(r.fd, offCQRing, cqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			unix.Munmap(sqMem)
			return fmt.Errorf("uring: mmap cq ring: %w", err)
		}
		r.cqMem = cqMem
	}

	sqeSize := int(p.SQEntries * uint32(unsafe.Sizeof(SQE{})))
	sqesMem, err := unix.Mmap(r.fd, offSQEs, sqeSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		if len(r.cqMem) > 0 && &r.cqMem[0] != &r.sqMem[0] {
			unix.Munmap(r.cqMem)
		}
		unix.Munmap(r.sqMem)
		return fmt.Errorf("uring: mmap sqes: %w", err)
	}
	r.sqesMem = sqesMem

	base := unsafe.Pointer(&sqMem[0])
	r.sqHead = (*uint32)(unsafe.Add(base, p.SQOff.Head))
	r.sqTail = (*uint32)(unsafe.Add(base, p.SQOff.Tail))
	r.sqMask = *(*uint32)(unsafe.Add(base, p.SQOff.RingMask))
	r.sqArray = unsafe.Add(base, p.SQOff.Array)

	cqBase := unsafe.Pointer(&r.cqMem[0])
	r.cqHead = (*uint32)(unsafe.Add(cqBase, p.CQOff.Head))
	r.cqTail = (*uint32)(unsafe.Add(cqBase, p.CQOff.Tail))
	r.cqMask = *(*uint32)(unsafe.Add(cqBase, p.CQOff.RingMask))
	r.cqes = unsafe.Add(cqBase, p.CQOff.CQEs)

	r.sqes = unsafe.Pointer(&sqesMem[0])
	r.localTail = atomic.LoadUint32(r.sqTail)

	return nil
}

// NextSQE returns the next free submission-queue entry to fill, or
// false if the ring has no free slot (spec.md §4.3's "enqueue fails
// because the submission queue is full" case — the caller is expected
// to Submit and retry once).
func (r *Ring) NextSQE() (*SQE, bool) {
	head := atomic.LoadUint32(r.sqHead)
	if r.localTail-head >= r.entries {
		return nil, false
	}
	idx := r.localTail & r.sqMask
	sqe := (*SQE)(unsafe.Add(r.sqes, uintptr(idx)*unsafe.Sizeof(SQE{})))
	*sqe = SQE{}
	*(*uint32)(unsafe.Add(r.sqArray, uintptr(idx)*4)) = idx
	r.localTail++
	r.pending++
	return sqe, true
}

// Submit publishes every SQE filled since the last Submit call to the
// kernel and returns the number the kernel accepted. It does not
// block: IORING_ENTER_GETEVENTS is never set, matching spec.md §4.3's
// non-blocking reference design (completions are drained separately
// via PeekCQE/AdvanceCQ).
func (r *Ring) Submit() (int, error) {
	if r.pending == 0 {
		return 0, nil
	}
	toSubmit := r.pending
	atomic.StoreUint32(r.sqTail, r.localTail)
	n, err := ioURingEnter(r.fd, toSubmit, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("uring: io_uring_enter: %w", err)
	}
	r.pending = 0
	return n, nil
}

// PeekCQE returns the oldest unconsumed completion without advancing
// the ring, or false if none is available. Call AdvanceCQ once the
// caller is done with the returned pointer.
func (r *Ring) PeekCQE() (*CQE, bool) {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	if head == tail {
		return nil, false
	}
	idx := head & r.cqMask
	cqe := (*CQE)(unsafe.Add(r.cqes, uintptr(idx)*unsafe.Sizeof(CQE{})))
	return cqe, true
}

// AdvanceCQ releases the oldest completion back to the kernel.
func (r *Ring) AdvanceCQ() {
	atomic.AddUint32(r.cqHead, 1)
}

// Close unmaps every ring region and closes the io_uring file
// descriptor.
func (r *Ring) Close() error {
	if r.sqesMem != nil {
		unix.Munmap(r.sqesMem)
	}
	if r.cqMem != nil && (r.sqMem == nil || &r.cqMem[0] != &r.sqMem[0]) {
		unix.Munmap(r.cqMem)
	}
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
	}
	return unix.Close(r.fd)
}
