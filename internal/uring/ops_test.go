//go:build linux

package uring

import "testing"

func TestPrepRecvSetsFields(t *testing.T) {
	var sqe SQE
	buf := make([]byte, 16)
	PrepRecv(&sqe, 7, buf, 0xdead)

	if sqe.Opcode != OpRecv {
		t.Fatalf("Opcode = %d, want %d", sqe.Opcode, OpRecv)
	}
	if sqe.Fd != 7 {
		t.Fatalf("Fd = %d, want 7", sqe.Fd)
	}
	if sqe.Len != 16 {
		t.Fatalf("Len = %d, want 16", sqe.Len)
	}
	if sqe.UserData != 0xdead {
		t.Fatalf("UserData = %x, want dead", sqe.UserData)
	}
}

func TestPrepSendSetsFields(t *testing.T) {
	var sqe SQE
	buf := []byte("hello")
	PrepSend(&sqe, 3, buf, 0xbeef)

	if sqe.Opcode != OpSend {
		t.Fatalf("Opcode = %d, want %d", sqe.Opcode, OpSend)
	}
	if sqe.Len != uint32(len(buf)) {
		t.Fatalf("Len = %d, want %d", sqe.Len, len(buf))
	}
}

func TestPrepAcceptSetsFields(t *testing.T) {
	var sqe SQE
	PrepAccept(&sqe, 5, 0x1234)

	if sqe.Opcode != OpAccept {
		t.Fatalf("Opcode = %d, want %d", sqe.Opcode, OpAccept)
	}
	if sqe.Fd != 5 {
		t.Fatalf("Fd = %d, want 5", sqe.Fd)
	}
}

func TestPrepRecvWithEmptyBufferLeavesAddrZero(t *testing.T) {
	var sqe SQE
	PrepRecv(&sqe, 1, nil, 0)
	if sqe.Addr != 0 {
		t.Fatalf("Addr = %d, want 0 for nil buffer", sqe.Addr)
	}
	if sqe.Len != 0 {
		t.Fatalf("Len = %d, want 0 for nil buffer", sqe.Len)
	}
}
