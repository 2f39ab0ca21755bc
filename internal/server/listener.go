//go:build linux

package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// bindListen creates, binds and listens on an IPv4 TCP socket, in the
// shape of NewListener's bind/listen sequence — but returning the raw
// fd instead of a *net.TCPListener, since spec.md §4.3 submits accept
// through io_uring against the listening socket's fd directly.
func bindListen(port uint16, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("server: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: setsockopt SO_REUSEADDR: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: bind: %w", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: listen: %w", err)
	}

	return fd, nil
}
