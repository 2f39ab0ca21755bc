package diag

import (
	"fmt"
	"testing"
)

func TestCountersTrackAcceptAndClose(t *testing.T) {
	d := New()
	d.NoteAccepted()
	d.NoteAccepted()
	d.NoteClosed()

	snap := d.GetSnapshot()
	if snap.Accepted != 2 || snap.Closed != 1 || snap.Active != 1 {
		t.Fatalf("snapshot = %+v, want Accepted=2 Closed=1 Active=1", snap)
	}
}

func TestAddBytesAccumulates(t *testing.T) {
	d := New()
	d.AddBytes(5)
	d.AddBytes(10)
	if got := d.GetSnapshot().Bytes; got != 15 {
		t.Fatalf("Bytes = %d, want 15", got)
	}
}

func TestErrorTrailEvictsOldest(t *testing.T) {
	d := New()
	for i := 0; i < errorTrailCap+5; i++ {
		d.RecordError(fmt.Errorf("boom %d", i))
	}
	errs := d.GetSnapshot().Errors
	if len(errs) != errorTrailCap {
		t.Fatalf("error trail length = %d, want %d", len(errs), errorTrailCap)
	}
	if got := errs[0].Error(); got != "boom 5" {
		t.Fatalf("oldest kept error = %q, want %q", got, "boom 5")
	}
	if got := errs[len(errs)-1].Error(); got != fmt.Sprintf("boom %d", errorTrailCap+4) {
		t.Fatalf("newest kept error = %q, want %q", got, fmt.Sprintf("boom %d", errorTrailCap+4))
	}
}

func TestDumpStateIncludesProbesAndCounters(t *testing.T) {
	d := New()
	d.RegisterProbe("foo", func() any { return "bar" })
	d.NoteAccepted()

	state := d.DumpState()
	if state["foo"] != "bar" {
		t.Fatalf("probe result = %v, want bar", state["foo"])
	}
	if _, ok := state["counters"].(Snapshot); !ok {
		t.Fatalf("counters entry missing or wrong type: %v", state["counters"])
	}
}
