// Package abi provides the guest-owned memory arena for the WASM boundary.
//
// Every buffer the guest hands to the host, and every scratch buffer the host
// asks the guest for, is allocated here and tracked in a registry that maps
// live addresses to their true size. All reads and writes are resolved
// through that registry, so an address that was never allocated, was already
// released, or points inside another block is rejected instead of
// dereferenced.
//
// Under wasip1 an address is the offset of a Go heap object, and the
// allocator may hand the same offset out again once the released object is
// collected. Released blocks therefore stay pinned in a FIFO quarantine of
// QuarantineBlocks entries. A stale release that arrives while the address
// is quarantined is reported; one after it ages out may hit a newer block
// at the same address.
package abi

import (
	"fmt"
	"sync"

	"github.com/reglet-dev/ledger-guest/domain/errors"
)

// DefaultMaxTotalAllocations is the default ceiling on live arena memory.
// This prevents unbounded memory growth in WASM linear memory.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// QuarantineBlocks is the number of released blocks kept pinned so that
// their addresses are not reused immediately.
const QuarantineBlocks = 64

// quarantineMaxBytes caps the memory a single quarantined block may keep
// alive. Larger blocks are still unpinned at once.
const quarantineMaxBytes = 64 * 1024

// Block is an address and length pair denoting a guest-owned buffer.
type Block struct {
	Addr uint32
	Len  uint32
}

// addressSpace assigns the boundary address of a freshly allocated backing
// slice.
type addressSpace interface {
	assign(backing []byte) uint32
}

type arenaConfig struct {
	maxTotalAllocations int
}

func defaultArenaConfig() arenaConfig {
	return arenaConfig{maxTotalAllocations: DefaultMaxTotalAllocations}
}

// Option configures an Arena.
type Option func(*arenaConfig)

// WithMaxTotalAllocations sets the ceiling on live arena memory in bytes.
// Zero or negative limits are ignored.
func WithMaxTotalAllocations(limit int) Option {
	return func(c *arenaConfig) {
		if limit > 0 {
			c.maxTotalAllocations = limit
		}
	}
}

// Arena tracks all allocations handed across the boundary.
// It keeps a reference to allocated slices to prevent the Go GC from
// collecting them, effectively pinning the memory until it is released.
//
// The mutex only serializes bookkeeping. Entry points are still expected to
// be called one at a time by the host.
type Arena struct {
	space          addressSpace
	blocks         map[uint32][]byte // addr -> slice reference
	totalAllocated int
	maxTotal       int
	quarantine     [QuarantineBlocks][]byte
	quarantineNext int
	mu             sync.Mutex
}

// NewArena creates an empty arena.
func NewArena(opts ...Option) *Arena {
	cfg := defaultArenaConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Arena{
		space:    newAddressSpace(),
		blocks:   make(map[uint32][]byte),
		maxTotal: cfg.maxTotalAllocations,
	}
}

// Allocate reserves size zeroed bytes and returns the block.
// A zero size still yields a unique, non-zero address.
// Panics with *errors.AllocationError if the allocation would exceed the
// arena limit; allocation failure is fatal for the module.
func (a *Arena) Allocate(size uint32) Block {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.totalAllocated+int(size) > a.maxTotal {
		panic(&errors.AllocationError{
			Requested: int(size),
			Current:   a.totalAllocated,
			Limit:     a.maxTotal,
		})
	}

	backing := make([]byte, max(size, 1))
	addr := a.space.assign(backing)
	if _, live := a.blocks[addr]; live || addr == 0 {
		panic(fmt.Sprintf("abi: address 0x%x assigned while still live", addr))
	}

	a.blocks[addr] = backing[:size]
	a.totalAllocated += int(size)

	return Block{Addr: addr, Len: size}
}

// Release frees the block at addr. The size argument is advisory: accounting
// uses the tracked size, never the caller's. Releasing an address that is not
// live (including a second release) returns *errors.UnknownAddressError and
// leaves every other block untouched.
func (a *Arena) Release(addr uint32, _ uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, live := a.blocks[addr]
	if !live {
		return &errors.UnknownAddressError{Op: "release", Addr: addr}
	}

	delete(a.blocks, addr)
	a.totalAllocated -= len(stored)
	a.quarantineBlock(stored)
	return nil
}

// quarantineBlock keeps a released backing slice reachable for the next
// QuarantineBlocks releases. Caller must hold a.mu.
func (a *Arena) quarantineBlock(stored []byte) {
	if cap(stored) > quarantineMaxBytes {
		return
	}
	a.quarantine[a.quarantineNext] = stored
	a.quarantineNext = (a.quarantineNext + 1) % QuarantineBlocks
}

// Size returns the tracked size of the live block at addr.
func (a *Arena) Size(addr uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, live := a.blocks[addr]
	if !live {
		return 0, &errors.UnknownAddressError{Op: "size", Addr: addr}
	}
	return uint32(len(stored)), nil
}

// Read returns a copy of the first length bytes of the block at addr.
func (a *Arena) Read(addr, length uint32) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.lookup("read", addr, length)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length) // Copy so callers never alias arena memory
	copy(data, stored)
	return data, nil
}

// Write copies data to the start of the block at addr.
func (a *Arena) Write(addr uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.lookup("write", addr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(stored, data)
	return nil
}

// lookup resolves addr and checks that length fits in the tracked block.
// Caller must hold a.mu.
func (a *Arena) lookup(op string, addr, length uint32) ([]byte, error) {
	stored, live := a.blocks[addr]
	if !live {
		return nil, &errors.UnknownAddressError{Op: op, Addr: addr}
	}
	if int(length) > len(stored) {
		return nil, &errors.MalformedBufferError{
			Addr:   addr,
			Reason: fmt.Sprintf("%s of %d bytes exceeds allocation of %d bytes", op, length, len(stored)),
		}
	}
	return stored, nil
}

// Stats returns the number of live blocks and the bytes they hold.
func (a *Arena) Stats() (allocCount, totalBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blocks), a.totalAllocated
}

// FreeAllTracked frees all memory currently tracked by the arena.
// It is meant for module shutdown and test isolation; any address the host
// still holds becomes invalid.
func (a *Arena) FreeAllTracked() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.blocks)
	clear(a.quarantine[:])
	a.totalAllocated = 0
}
