// Package conntable implements the fixed-capacity connection registry
// from spec.md §4.2: a slot array associating an integer handle with a
// socket descriptor and a ring buffer, with allocate/release semantics
// over those handles.
//
// The table is accessed from exactly one OS thread (spec.md §5), the
// same single-threaded model the teacher's own session/connection
// tables assume; no locking is needed, only the guard comments that
// mark the single-writer assumption.
package conntable

import (
	"errors"

	"github.com/momentics/uringecho/internal/ring"
)

// Sentinel marks a slot as unused, as spec.md §3 defines it.
const Sentinel = -1

// ErrConnectionsLimitReached is returned by Add when every slot is
// occupied.
var ErrConnectionsLimitReached = errors.New("conntable: connections limit reached")

// Slot is one connection's state: a socket descriptor (or Sentinel)
// and the ring buffer it owns.
type Slot struct {
	Sock int
	Buf  *ring.Buffer
}

// Active reports whether the slot currently holds a live connection.
func (s *Slot) Active() bool { return s.Sock != Sentinel }

// ConnStats is a read-only snapshot of one slot, exposed only for
// diagnostics — not part of the core echo cycle. internal/diag does not
// itself call Snapshot.
type ConnStats struct {
	Handle int
	Active bool
	Filled int
}

// Table is the fixed-size slot array of spec.md §4.2.
type Table struct {
	slots []Slot
}

// New constructs a table of the given capacity, building one ring
// buffer per slot up front. If the k-th ring buffer fails to
// construct, the preceding k buffers are destroyed before returning
// the error, per spec.md §4.2's construction-failure rule.
func New(capacity int, ringBytes int) (*Table, error) {
	t := &Table{slots: make([]Slot, capacity)}
	for i := range t.slots {
		buf, err := ring.NewSize(ringBytes)
		if err != nil {
			for j := 0; j < i; j++ {
				t.slots[j].Buf.Close()
			}
			return nil, err
		}
		t.slots[i] = Slot{Sock: Sentinel, Buf: buf}
	}
	return t, nil
}

// Cap returns MAX_CONNECTIONS, the table's fixed capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Add scans for the first sentinel slot in ascending index order,
// stores sock there, and returns its handle. The caller is expected to
// close sock if ErrConnectionsLimitReached is returned.
func (t *Table) Add(sock int) (int, error) {
	for i := range t.slots {
		if !t.slots[i].Active() {
			t.slots[i].Sock = sock
			return i, nil
		}
	}
	return 0, ErrConnectionsLimitReached
}

// Remove closes the slot's socket if active, resets it to the
// sentinel, and zeroes the ring buffer's len (pos is left unchanged,
// which spec.md §9 notes is safe).
func (t *Table) Remove(handle int) error {
	s := &t.slots[handle]
	if !s.Active() {
		return nil
	}
	err := closeSocket(s.Sock)
	s.Sock = Sentinel
	s.Buf.Reset()
	return err
}

// Slot returns a pointer to the slot for handle, for the multiplexer
// to dereference on a completion. The multiplexer owns the contract
// that handle always names a currently-active slot when this is
// called (spec.md §9's no-ABA argument).
func (t *Table) Slot(handle int) *Slot {
	return &t.slots[handle]
}

// Snapshot reports per-slot state for diagnostics only; it is not on
// any hot path.
func (t *Table) Snapshot() []ConnStats {
	out := make([]ConnStats, len(t.slots))
	for i := range t.slots {
		out[i] = ConnStats{
			Handle: i,
			Active: t.slots[i].Active(),
			Filled: t.slots[i].Buf.Len(),
		}
	}
	return out
}

// Close tears down every ring buffer, for process shutdown.
func (t *Table) Close() error {
	var first error
	for i := range t.slots {
		if err := t.slots[i].Buf.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
