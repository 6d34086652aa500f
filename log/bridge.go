package log

import "github.com/reglet-dev/ledger-guest/wireformat"

// Sink is the host-supplied logging capability. It receives the address and
// length of a length-delimited UTF-8 message.
//
// Ownership of the buffer passes to the host: the guest never frees it. A
// host that wants the memory back calls release_buffer with the address.
type Sink func(addr, length uint32)

// Bridge forwards diagnostic strings to a Sink.
type Bridge struct {
	codec *wireformat.Codec
	sink  Sink
}

// NewBridge creates a Bridge. A nil sink turns Log into a no-op that
// allocates nothing.
func NewBridge(codec *wireformat.Codec, sink Sink) *Bridge {
	return &Bridge{codec: codec, sink: sink}
}

// Log copies message into a fresh length-delimited block and hands it to
// the sink.
func (b *Bridge) Log(message string) {
	if b == nil || b.sink == nil {
		return
	}
	out := b.codec.WriteLengthDelimited(message)
	b.sink(out.Addr, out.Len)
}
