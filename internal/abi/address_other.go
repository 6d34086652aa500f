//go:build !wasip1

package abi

import "math"

const (
	simulatedBase  = 0x10000
	simulatedAlign = 8
)

// simulatedMemory hands out addresses from a monotonic counter so the
// boundary protocol can run on the host platform. Addresses are never
// reused, which makes any stale address fail lookup.
type simulatedMemory struct {
	next uint64
}

func newAddressSpace() addressSpace {
	return &simulatedMemory{next: simulatedBase}
}

func (s *simulatedMemory) assign(backing []byte) uint32 {
	addr := s.next
	// Round up and leave a guard gap so adjacent blocks never touch.
	span := (uint64(len(backing))+simulatedAlign-1)&^(simulatedAlign-1) + simulatedAlign
	if addr+span > math.MaxUint32 {
		panic("abi: simulated address space exhausted")
	}
	s.next = addr + span
	return uint32(addr)
}
