//go:build linux

package uring

import "unsafe"

// PrepAccept fills sqe to submit an accept(2) on listenFD. addr/addrlen
// may be nil/0 to ignore the peer address, which this server does —
// it never needs the client's address.
func PrepAccept(sqe *SQE, listenFD int32, userData uint64) {
	sqe.Opcode = OpAccept
	sqe.Fd = listenFD
	sqe.UserData = userData
}

// PrepRecv fills sqe to submit a recv(2) of buf into the kernel.
func PrepRecv(sqe *SQE, fd int32, buf []byte, userData uint64) {
	sqe.Opcode = OpRecv
	sqe.Fd = fd
	sqe.UserData = userData
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
}

// PrepSend fills sqe to submit a send(2) of buf from the kernel's
// point of view (this process's data read out to the peer).
func PrepSend(sqe *SQE, fd int32, buf []byte, userData uint64) {
	sqe.Opcode = OpSend
	sqe.Fd = fd
	sqe.UserData = userData
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
}
