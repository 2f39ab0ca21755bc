//go:build linux

// Package affinity pins the server's single cooperative OS thread to
// one CPU. The teacher's affinity package does this through a cgo
// pthread_setaffinity_np shim; this server is Linux-only by design and
// already links golang.org/x/sys/unix for io_uring, so the same effect
// is reached with unix.SchedSetaffinity and no cgo.
package affinity

import "golang.org/x/sys/unix"

// Pin restricts the calling OS thread to cpu. The caller must already
// have called
// runtime.LockOSThread, since Pin only sets the scheduling mask — it
// does not itself keep the goroutine from migrating threads.
func Pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
