//go:build linux

package conntable

import "golang.org/x/sys/unix"

func closeSocket(fd int) error {
	return unix.Close(fd)
}
