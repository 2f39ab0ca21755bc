// Package mux drives the io_uring submission/completion cycle of
// spec.md §4.3: it submits accept/recv/send and dispatches each
// completion back into the connection table.
package mux

// OpKind is the three-variant tag spec.md §3 calls the Operation
// Context: accept, recv, or send.
type OpKind uint8

const (
	OpAccept OpKind = iota
	OpRecv
	OpSend
)

func (k OpKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpRecv:
		return "recv"
	case OpSend:
		return "send"
	default:
		return "unknown"
	}
}

// OpTag is the tagged value carried through the kernel's 64-bit
// user-data field (spec.md §3, §9). The payload is either the
// listening socket fd (accept) or a connection handle (recv/send);
// both fit comfortably in the low 32 bits, leaving the top 32 bits for
// the 2-bit kind, as spec.md §9 allows any bijective encoding.
type OpTag struct {
	Kind    OpKind
	Payload int32
}

// Encode packs t into the 64-bit value the kernel will echo back
// unchanged on the matching completion.
func (t OpTag) Encode() uint64 {
	return uint64(t.Kind)<<32 | uint64(uint32(t.Payload))
}

// DecodeOpTag unpacks a completion's user-data field back into its
// kind and payload. It is the exact inverse of Encode for every value
// Encode can produce.
func DecodeOpTag(userData uint64) OpTag {
	return OpTag{
		Kind:    OpKind(userData >> 32),
		Payload: int32(uint32(userData)),
	}
}
