//go:build wasip1

package abi

import "unsafe"

// linearMemory uses the real WASM linear memory offset of the backing slice.
// The Go GC does not move heap objects, so the offset is stable for as long
// as the arena pins the slice.
type linearMemory struct{}

func newAddressSpace() addressSpace {
	return linearMemory{}
}

func (linearMemory) assign(backing []byte) uint32 {
	// WASM linear memory: uint32 offset -> pointer conversion is safe and necessary
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(backing))))
}
