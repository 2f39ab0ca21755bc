//go:build linux

package ring

import (
	"golang.org/x/sys/unix"
)

// rawMmap wraps the mmap(2) syscall directly instead of unix.Mmap
// because unix.Mmap never exposes an explicit target address, and the
// double-mapping trick requires MAP_FIXED at an address this package
// chooses itself (pault.ag/go/go-diskring's syscall.go takes the same
// approach for the same reason).
func rawMmap(addr, length uintptr, prot, flags, fd int, offset int64) (uintptr, error) {
	ret, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return ret, nil
}

func rawMunmap(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
