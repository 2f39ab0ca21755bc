// Package diag is the debug/metrics surface the ambient stack adds
// around the core echo cycle: connection counters and a bounded trail
// of per-completion errors (spec.md §7's "log and skip" policy made
// inspectable), adapted from control.MetricsRegistry and
// control.DebugProbes.
package diag

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// errorTrailCap bounds how many recent per-completion errors are kept;
// older entries drop off once the trail exceeds this length.
const errorTrailCap = 32

// Diagnostics collects connection/byte counters and a capped error
// trail. All methods are safe for concurrent use even though the
// server itself is single-threaded, so the CLI or a future debug
// endpoint can read it without coordinating with the echo loop.
type Diagnostics struct {
	mu sync.RWMutex

	accepted int64
	closed   int64
	active   int64
	bytes    int64

	errors  *queue.Queue
	updated time.Time

	probes map[string]func() any
}

// New constructs an empty Diagnostics instance.
func New() *Diagnostics {
	return &Diagnostics{
		errors: queue.New(),
		probes: make(map[string]func() any),
	}
}

// NoteAccepted records one successful accept completion.
func (d *Diagnostics) NoteAccepted() {
	d.mu.Lock()
	d.accepted++
	d.active++
	d.updated = time.Now()
	d.mu.Unlock()
}

// NoteClosed records one handle release (recv/send terminal completion).
func (d *Diagnostics) NoteClosed() {
	d.mu.Lock()
	d.closed++
	if d.active > 0 {
		d.active--
	}
	d.updated = time.Now()
	d.mu.Unlock()
}

// AddBytes accumulates bytes echoed through commit_push.
func (d *Diagnostics) AddBytes(n int) {
	d.mu.Lock()
	d.bytes += int64(n)
	d.mu.Unlock()
}

// RecordError appends err to the bounded error trail, evicting the
// oldest entry once the trail exceeds errorTrailCap.
func (d *Diagnostics) RecordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors.Add(err)
	for d.errors.Length() > errorTrailCap {
		d.errors.Remove()
	}
}

// RegisterProbe inserts a named debug hook, in the shape of
// control.DebugProbes.RegisterProbe.
func (d *Diagnostics) RegisterProbe(name string, fn func() any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.probes[name] = fn
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Accepted int64
	Closed   int64
	Active   int64
	Bytes    int64
	Errors   []error
	Updated  time.Time
}

// GetSnapshot returns the current counters and a copy of the error
// trail, oldest first.
func (d *Diagnostics) GetSnapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	errs := make([]error, d.errors.Length())
	for i := range errs {
		errs[i] = d.errors.Get(i).(error)
	}
	return Snapshot{
		Accepted: d.accepted,
		Closed:   d.closed,
		Active:   d.active,
		Bytes:    d.bytes,
		Errors:   errs,
		Updated:  d.updated,
	}
}

// DumpState returns the output of every registered probe plus the
// counter snapshot under the key "counters", the way
// control.DebugProbes.DumpState gathers probes on demand.
func (d *Diagnostics) DumpState() map[string]any {
	d.mu.RLock()
	probes := make(map[string]func() any, len(d.probes))
	for k, fn := range d.probes {
		probes[k] = fn
	}
	d.mu.RUnlock()

	out := make(map[string]any, len(probes)+1)
	for k, fn := range probes {
		out[k] = fn()
	}
	out["counters"] = d.GetSnapshot()
	return out
}
