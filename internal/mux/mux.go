//go:build linux

package mux

import (
	"errors"
	"fmt"
	"log"

	"golang.org/x/sys/unix"

	"github.com/momentics/uringecho/internal/conntable"
	"github.com/momentics/uringecho/internal/diag"
	"github.com/momentics/uringecho/internal/uring"
)

var errQueueFull = errors.New("mux: submission queue full")

// Completion is the kernel-agnostic shape dispatchCompletion needs: a
// user-data tag and a result code. Split out from *uring.CQE (whose
// fields live in mmap'd kernel memory) so dispatch can be unit-tested
// with fabricated values, the way the teacher separates
// fake.FakeReactor from reactor.Reactor for the same reason.
type Completion struct {
	UserData uint64
	Res      int32
}

// Action is one submission dispatchCompletion asks the driver loop to
// issue after processing a completion.
type Action struct {
	Kind   OpKind
	Handle int32 // meaningful for OpRecv/OpSend; ignored for OpAccept
}

// dispatchCompletion implements spec.md §4.3 step 2: decide, from one
// completion, what connection-table mutation and what follow-up
// submissions are required. It performs the mutation itself (add/
// remove/commit) and returns the submissions the caller must still
// issue against the kernel ring.
func dispatchCompletion(c Completion, listenSock int32, table *conntable.Table, d *diag.Diagnostics) []Action {
	tag := DecodeOpTag(c.UserData)

	if c.Res <= 0 && tag.Kind != OpAccept {
		// accept's "no connection produced" case is handled in its own
		// branch below; recv/send failures always release the handle.
		handle := int(tag.Payload)
		if err := table.Remove(handle); err != nil {
			d.RecordError(fmt.Errorf("mux: remove handle %d: %w", handle, err))
		}
		d.NoteClosed()
		return nil
	}

	switch tag.Kind {
	case OpAccept:
		if c.Res <= 0 {
			// spec.md §4.3: no new connection; do not re-arm from this
			// completion (see spec.md §9's documented open question).
			d.RecordError(fmt.Errorf("mux: accept completion failed: res=%d", c.Res))
			return nil
		}
		newSock := c.Res
		handle, err := table.Add(int(newSock))
		if err != nil {
			// spec.md §7: "close the freshly accepted socket and continue;
			// log" — conntable.Table.Add's own doc comment places this
			// obligation on the caller.
			if closeErr := unix.Close(int(newSock)); closeErr != nil {
				d.RecordError(fmt.Errorf("mux: close rejected socket: %w", closeErr))
			}
			d.RecordError(fmt.Errorf("mux: %w", err))
			return []Action{{Kind: OpAccept}}
		}
		d.NoteAccepted()
		return []Action{
			{Kind: OpRecv, Handle: int32(handle)},
			{Kind: OpAccept},
		}

	case OpRecv:
		handle := int(tag.Payload)
		slot := table.Slot(handle)
		if err := slot.Buf.CommitPush(int(c.Res)); err != nil {
			d.RecordError(fmt.Errorf("mux: commit_push handle %d: %w", handle, err))
			table.Remove(handle)
			d.NoteClosed()
			return nil
		}
		d.AddBytes(int(c.Res))
		return []Action{{Kind: OpSend, Handle: int32(handle)}}

	case OpSend:
		handle := int(tag.Payload)
		slot := table.Slot(handle)
		if err := slot.Buf.CommitPop(int(c.Res)); err != nil {
			d.RecordError(fmt.Errorf("mux: commit_pop handle %d: %w", handle, err))
			table.Remove(handle)
			d.NoteClosed()
			return nil
		}
		return []Action{{Kind: OpRecv, Handle: int32(handle)}}

	default:
		d.RecordError(fmt.Errorf("mux: unknown completion tag %d", tag.Kind))
		return nil
	}
}

// Multiplexer owns the kernel ring and drives the drain loop of
// spec.md §4.3 against a connection table.
type Multiplexer struct {
	ring       *uring.Ring
	table      *conntable.Table
	listenSock int32
	diag       *diag.Diagnostics
	log        *log.Logger
}

// New constructs a Multiplexer over an already-open ring and table.
func New(ring *uring.Ring, table *conntable.Table, listenSock int32, d *diag.Diagnostics, logger *log.Logger) *Multiplexer {
	return &Multiplexer{ring: ring, table: table, listenSock: listenSock, diag: d, log: logger}
}

// ArmInitialAccept submits the bootstrap accept that starts the
// listen loop.
func (m *Multiplexer) ArmInitialAccept() error {
	return m.submit(Action{Kind: OpAccept})
}

// HandleUpdates runs one iteration of spec.md §4.3's drain loop:
// harvest whatever completions are ready without blocking, dispatch
// each, then flush the resulting submissions once.
func (m *Multiplexer) HandleUpdates() error {
	const maxBatch = 1024
	for i := 0; i < maxBatch; i++ {
		cqe, ok := m.ring.PeekCQE()
		if !ok {
			break
		}
		c := Completion{UserData: cqe.UserData, Res: cqe.Res}
		m.ring.AdvanceCQ()

		for _, action := range dispatchCompletion(c, m.listenSock, m.table, m.diag) {
			if err := m.submit(action); err != nil {
				return err
			}
		}
	}

	if _, err := m.ring.Submit(); err != nil {
		return fmt.Errorf("mux: flush submissions: %w", err)
	}
	return nil
}

// submit enqueues one action's SQE, flushing and retrying once if the
// submission queue is momentarily full (spec.md §4.3's retry policy
// for submit_accept/submit_recv/submit_send).
func (m *Multiplexer) submit(a Action) error {
	if err := m.tryEnqueue(a); err == nil {
		return nil
	}
	if _, err := m.ring.Submit(); err != nil {
		return fmt.Errorf("mux: flush before retry: %w", err)
	}
	if err := m.tryEnqueue(a); err != nil {
		return fmt.Errorf("mux: submission queue full after retry: %w", err)
	}
	return nil
}

func (m *Multiplexer) tryEnqueue(a Action) error {
	sqe, ok := m.ring.NextSQE()
	if !ok {
		return errQueueFull
	}
	tag := OpTag{Kind: a.Kind}

	switch a.Kind {
	case OpAccept:
		tag.Payload = m.listenSock
		uring.PrepAccept(sqe, m.listenSock, tag.Encode())
	case OpRecv:
		tag.Payload = a.Handle
		slot := m.table.Slot(int(a.Handle))
		uring.PrepRecv(sqe, int32(slot.Sock), slot.Buf.AvailSlice(), tag.Encode())
	case OpSend:
		tag.Payload = a.Handle
		slot := m.table.Slot(int(a.Handle))
		uring.PrepSend(sqe, int32(slot.Sock), slot.Buf.Slice(), tag.Encode())
	}
	return nil
}
