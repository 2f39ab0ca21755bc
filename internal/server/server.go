//go:build linux

// Package server wires the ring buffer, connection table and io_uring
// multiplexer into the lifecycle spec.md §1/§4.3 describes, in the
// shape of server.NewServer/(*Server).Run/(*Server).Shutdown from the
// teacher's own server package.
package server

import (
	"errors"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/momentics/uringecho/internal/affinity"
	"github.com/momentics/uringecho/internal/config"
	"github.com/momentics/uringecho/internal/conntable"
	"github.com/momentics/uringecho/internal/diag"
	"github.com/momentics/uringecho/internal/mux"
	"github.com/momentics/uringecho/internal/uring"
)

// ErrAlreadyRunning mirrors the teacher's own sentinel naming for a
// double-Run call.
var ErrAlreadyRunning = errors.New("server: already running")

// Server owns every process-wide resource spec.md §3's Ownership
// paragraph names: one multiplexer, one connection table, and the
// listening socket.
type Server struct {
	cfg        *config.Config
	table      *conntable.Table
	ring       *uring.Ring
	mux        *mux.Multiplexer
	listenSock int
	diag       *diag.Diagnostics
	log        *log.Logger

	running  bool
	shutdown chan struct{}
}

// New constructs a Server: builds the connection table (and its
// MAX_CONNECTIONS ring buffers), opens the io_uring instance, and
// binds/listens on cfg.Port. Any failure here is an initialization
// error per spec.md §7 and is fatal to the caller.
func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = log.Default()
	}

	table, err := conntable.New(cfg.MaxConnections, cfg.RingPageBytes)
	if err != nil {
		return nil, fmt.Errorf("server: connection table: %w", err)
	}

	ring, err := uring.New(cfg.SubmissionEntries)
	if err != nil {
		table.Close()
		return nil, fmt.Errorf("server: io_uring init: %w", err)
	}

	listenFD, err := bindListen(cfg.Port, cfg.ListenBacklog)
	if err != nil {
		ring.Close()
		table.Close()
		return nil, err
	}

	d := diag.New()
	d.RegisterProbe("config", func() any {
		return map[string]any{
			"port":               cfg.Port,
			"max_connections":    cfg.MaxConnections,
			"ring_page_bytes":    cfg.RingPageBytes,
			"submission_entries": cfg.SubmissionEntries,
			"pin_cpu":            cfg.PinCPU,
		}
	})
	m := mux.New(ring, table, int32(listenFD), d, logger)

	return &Server{
		cfg:        cfg,
		table:      table,
		ring:       ring,
		mux:        m,
		listenSock: listenFD,
		diag:       d,
		log:        logger,
		shutdown:   make(chan struct{}),
	}, nil
}

// Diagnostics exposes the counters/error trail for a CLI or test to
// inspect.
func (s *Server) Diagnostics() *diag.Diagnostics { return s.diag }

// Run arms the bootstrap accept and drives the drain loop until
// Shutdown is called or a fatal error occurs. It pins the calling OS
// thread to cfg.PinCPU first if one was configured (spec.md §5: one
// thread, cooperative, never blocked on anything but the ring itself).
func (s *Server) Run() error {
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true

	if s.cfg.PinCPU >= 0 {
		runtime.LockOSThread()
		if err := affinity.Pin(s.cfg.PinCPU); err != nil {
			s.log.Printf("server: cpu pin failed, continuing unpinned: %v", err)
		}
	}

	if err := s.mux.ArmInitialAccept(); err != nil {
		return fmt.Errorf("server: arm initial accept: %w", err)
	}

	for {
		select {
		case <-s.shutdown:
			return nil
		default:
		}
		if err := s.mux.HandleUpdates(); err != nil {
			return fmt.Errorf("server: handle updates: %w", err)
		}
	}
}

// Shutdown is best-effort: it signals Run's loop to stop (Run returns
// nil at its next iteration), then closes the listening socket, the
// io_uring instance and the connection table's ring buffers. In-flight
// client connections are not drained, matching spec.md §1's explicit
// non-goal.
func (s *Server) Shutdown() error {
	close(s.shutdown)
	err1 := unix.Close(s.listenSock)
	err2 := s.ring.Close()
	err3 := s.table.Close()
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return err
		}
	}
	return nil
}
