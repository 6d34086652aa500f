package host

import "fmt"

// GuestError is a ledger failure reported by the guest as an "error: ..."
// result string.
type GuestError struct {
	EntryPoint string
	Message    string
}

func (e *GuestError) Error() string {
	return fmt.Sprintf("%s: %s", e.EntryPoint, e.Message)
}

// MemoryError reports a guest address the host could not read or write.
type MemoryError struct {
	Op   string
	Addr uint32
	Len  uint32
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("%s %d bytes at 0x%x: out of guest memory range", e.Op, e.Len, e.Addr)
}
