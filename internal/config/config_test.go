package config

import "testing"

func TestNewAppliesDefaults(t *testing.T) {
	c := New()
	if c.Port != DefaultPort {
		t.Fatalf("Port = %d, want %d", c.Port, DefaultPort)
	}
	if c.MaxConnections != DefaultMaxConnections {
		t.Fatalf("MaxConnections = %d, want %d", c.MaxConnections, DefaultMaxConnections)
	}
	if c.PinCPU != -1 {
		t.Fatalf("PinCPU = %d, want -1", c.PinCPU)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := New(WithPort(9000), WithMaxConnections(4), WithRingPageBytes(8192), WithPinCPU(2))
	if c.Port != 9000 || c.MaxConnections != 4 || c.RingPageBytes != 8192 || c.PinCPU != 2 {
		t.Fatalf("unexpected config after options: %+v", c)
	}
}
