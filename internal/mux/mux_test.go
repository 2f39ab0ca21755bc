//go:build linux

package mux

import (
	"testing"

	"github.com/momentics/uringecho/internal/conntable"
	"github.com/momentics/uringecho/internal/diag"
	"golang.org/x/sys/unix"
)

func newTestTable(t *testing.T, capacity int) *conntable.Table {
	t.Helper()
	tb, err := conntable.New(capacity, 4096)
	if err != nil {
		t.Fatalf("conntable.New: %v", err)
	}
	t.Cleanup(func() { tb.Close() })
	return tb
}

func pipeFD(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return fds[0], fds[1]
}

func TestDispatchAcceptSuccessAddsHandleAndRearms(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()
	newSock, _ := pipeFD(t)

	tag := OpTag{Kind: OpAccept, Payload: 99}
	c := Completion{UserData: tag.Encode(), Res: int32(newSock)}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 2 {
		t.Fatalf("actions = %v, want 2 entries", actions)
	}
	if actions[0].Kind != OpRecv || actions[1].Kind != OpAccept {
		t.Fatalf("actions = %+v, want [recv, accept]", actions)
	}
	if !table.Slot(int(actions[0].Handle)).Active() {
		t.Fatalf("handle %d not active after accept dispatch", actions[0].Handle)
	}
	if d.GetSnapshot().Accepted != 1 {
		t.Fatalf("Accepted counter = %d, want 1", d.GetSnapshot().Accepted)
	}
}

func TestDispatchAcceptAtCapacityClosesRejectedSocketAndRearms(t *testing.T) {
	table := newTestTable(t, 1)
	d := diag.New()

	occupant, _ := pipeFD(t)
	if _, err := table.Add(occupant); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rejected, _ := pipeFD(t)
	tag := OpTag{Kind: OpAccept, Payload: 99}
	c := Completion{UserData: tag.Encode(), Res: int32(rejected)}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 1 || actions[0].Kind != OpAccept {
		t.Fatalf("actions = %+v, want single re-armed accept", actions)
	}

	// The rejected socket must already be closed — a second close fails
	// with EBADF if the first one succeeded.
	if err := unix.Close(rejected); err == nil {
		t.Fatalf("rejected socket %d was not closed by dispatchCompletion", rejected)
	}
}

func TestDispatchAcceptFailureDoesNotRearm(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()

	tag := OpTag{Kind: OpAccept, Payload: 99}
	c := Completion{UserData: tag.Encode(), Res: 0}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 0 {
		t.Fatalf("actions = %v, want none on failed accept", actions)
	}
}

func TestDispatchRecvSuccessCommitsAndSubmitsSend(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()
	sock, _ := pipeFD(t)
	handle, err := table.Add(sock)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	tag := OpTag{Kind: OpRecv, Payload: int32(handle)}
	c := Completion{UserData: tag.Encode(), Res: 5}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 1 || actions[0].Kind != OpSend || int(actions[0].Handle) != handle {
		t.Fatalf("actions = %+v, want single send on handle %d", actions, handle)
	}
	if got := table.Slot(handle).Buf.Len(); got != 5 {
		t.Fatalf("buffer len after recv dispatch = %d, want 5", got)
	}
}

func TestDispatchRecvFailureRemovesHandle(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()
	sock, _ := pipeFD(t)
	handle, err := table.Add(sock)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	tag := OpTag{Kind: OpRecv, Payload: int32(handle)}
	c := Completion{UserData: tag.Encode(), Res: 0}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 0 {
		t.Fatalf("actions = %v, want none on recv EOF", actions)
	}
	if table.Slot(handle).Active() {
		t.Fatalf("handle %d still active after recv EOF", handle)
	}
}

func TestDispatchSendSuccessCommitsAndSubmitsRecv(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()
	sock, _ := pipeFD(t)
	handle, err := table.Add(sock)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	table.Slot(handle).Buf.Push([]byte("hello"))

	tag := OpTag{Kind: OpSend, Payload: int32(handle)}
	c := Completion{UserData: tag.Encode(), Res: 5}

	actions := dispatchCompletion(c, 99, table, d)
	if len(actions) != 1 || actions[0].Kind != OpRecv || int(actions[0].Handle) != handle {
		t.Fatalf("actions = %+v, want single recv on handle %d", actions, handle)
	}
	if got := table.Slot(handle).Buf.Len(); got != 0 {
		t.Fatalf("buffer len after send dispatch = %d, want 0", got)
	}
}

func TestDispatchSendFailureRemovesHandle(t *testing.T) {
	table := newTestTable(t, 4)
	d := diag.New()
	sock, _ := pipeFD(t)
	handle, err := table.Add(sock)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	tag := OpTag{Kind: OpSend, Payload: int32(handle)}
	c := Completion{UserData: tag.Encode(), Res: -1}

	dispatchCompletion(c, 99, table, d)
	if table.Slot(handle).Active() {
		t.Fatalf("handle %d still active after send failure", handle)
	}
}
