// Package wireformat implements the boundary codec: how strings and
// structured payloads are laid out in guest memory when they cross between
// host and guest.
//
// Two string conventions coexist and each has its own type, so a call site
// always states which one it means:
//
//   - LengthDelimited: the consumer reads exactly Len bytes. No terminator.
//   - NullTerminated: the consumer scans for a zero byte. The producer
//     allocates content length + 1 bytes and writes the trailing zero.
//
// Request and response payloads are JSON objects carried as NullTerminated
// strings. These formats define the ABI contract and must remain stable.
package wireformat

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reglet-dev/ledger-guest/domain/errors"
	"github.com/reglet-dev/ledger-guest/internal/abi"
)

// DefaultScanLimit bounds the terminator scan on null-terminated input (1MB).
// This prevents a malicious host from forcing unbounded scans over an
// unterminated buffer.
const DefaultScanLimit = 1 * 1024 * 1024

// LengthDelimited is a string buffer whose length is carried out of band.
type LengthDelimited struct {
	Addr uint32
	Len  uint32
}

// NullTerminated is a string buffer terminated by a zero byte.
type NullTerminated struct {
	Addr uint32
}

type codecConfig struct {
	scanLimit int
}

// Option configures a Codec.
type Option func(*codecConfig)

// WithScanLimit sets the maximum number of bytes scanned for a terminator.
// Zero or negative limits are ignored.
func WithScanLimit(limit int) Option {
	return func(c *codecConfig) {
		if limit > 0 {
			c.scanLimit = limit
		}
	}
}

// Codec reads and writes boundary strings in an arena.
type Codec struct {
	arena     *abi.Arena
	scanLimit int
}

// NewCodec creates a codec over the given arena.
func NewCodec(arena *abi.Arena, opts ...Option) *Codec {
	cfg := codecConfig{scanLimit: DefaultScanLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Codec{arena: arena, scanLimit: cfg.scanLimit}
}

// ScanLimit returns the configured terminator scan limit.
func (c *Codec) ScanLimit() int {
	return c.scanLimit
}

// WriteLengthDelimited copies s into a fresh block of exactly len(s) bytes.
func (c *Codec) WriteLengthDelimited(s string) LengthDelimited {
	blk := c.arena.Allocate(uint32(len(s)))
	c.mustWrite(blk.Addr, []byte(s))
	return LengthDelimited{Addr: blk.Addr, Len: blk.Len}
}

// WriteNullTerminated copies s into a fresh block of len(s)+1 bytes ending
// in a zero byte. A string with an embedded zero byte cannot be represented
// and yields *errors.EncodingError without allocating.
func (c *Codec) WriteNullTerminated(s string) (NullTerminated, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return NullTerminated{}, &errors.EncodingError{Offset: i, Reason: "embedded zero byte in null-terminated string"}
	}

	blk := c.arena.Allocate(uint32(len(s)) + 1)
	// The block is zeroed, so the final byte is already the terminator.
	c.mustWrite(blk.Addr, []byte(s))
	return NullTerminated{Addr: blk.Addr}, nil
}

// ReadLengthDelimited decodes exactly in.Len bytes as UTF-8.
func (c *Codec) ReadLengthDelimited(in LengthDelimited) (string, error) {
	if in.Len == 0 {
		// A zero-length input carries no bytes; the address is not consulted.
		return "", nil
	}

	data, err := c.arena.Read(in.Addr, in.Len)
	if err != nil {
		return "", &errors.MalformedBufferError{Addr: in.Addr, Reason: "length-delimited read failed", Err: err}
	}
	return decodeUTF8(data)
}

// ReadNullTerminated decodes bytes up to the first zero byte as UTF-8.
// The scan stops at the scan limit and never runs past the tracked block.
func (c *Codec) ReadNullTerminated(in NullTerminated) (string, error) {
	size, err := c.arena.Size(in.Addr)
	if err != nil {
		return "", &errors.MalformedBufferError{Addr: in.Addr, Reason: "null-terminated read failed", Err: err}
	}

	window := min(int(size), c.scanLimit)
	data, err := c.arena.Read(in.Addr, uint32(window))
	if err != nil {
		return "", &errors.MalformedBufferError{Addr: in.Addr, Reason: "null-terminated read failed", Err: err}
	}

	end := bytes.IndexByte(data, 0)
	if end < 0 {
		reason := fmt.Sprintf("buffer of %d bytes has no terminator", size)
		if int(size) > c.scanLimit {
			reason = fmt.Sprintf("no terminator within scan limit of %d bytes", c.scanLimit)
		}
		return "", &errors.MalformedBufferError{Addr: in.Addr, Reason: reason}
	}
	return decodeUTF8(data[:end])
}

func (c *Codec) mustWrite(addr uint32, data []byte) {
	if err := c.arena.Write(addr, data); err != nil {
		// The block was sized for data a moment ago; failure means the arena
		// bookkeeping itself is broken.
		panic(fmt.Sprintf("wireformat: write to fresh block failed: %v", err))
	}
}

func decodeUTF8(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	offset := 0
	for offset < len(data) {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		offset += size
	}
	return "", &errors.EncodingError{Offset: offset, Reason: "invalid UTF-8"}
}
