//go:build linux

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// io_uring syscall numbers on amd64/arm64, declared locally the same
// way both grounding examples (behrlich/go-iouring,
// DanielLaubacher/gogrep) do; they equal golang.org/x/sys/unix's
// SYS_IO_URING_SETUP/ENTER/REGISTER.
const (
	sysIOURingSetup    = 425
	sysIOURingEnter    = 426
	sysIOURingRegister = 427
)

func ioURingSetup(entries uint32, p *params) (int, error) {
	fd, _, errno := unix.Syscall(sysIOURingSetup, uintptr(entries), uintptr(unsafe.Pointer(p)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(fd), nil
}

func ioURingEnter(fd int, toSubmit, minComplete uint32, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(sysIOURingEnter, uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}
