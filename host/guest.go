package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/ledger-guest/domain/entities"
)

// HostModule is the import module name the guest links against.
const HostModule = "ledger_host"

const errorPrefix = "error: "

type pendingKey struct{}

// pendingBuffers collects log buffers handed over during a call. They are
// released after the call returns rather than from inside the import.
type pendingBuffers struct {
	blocks [][2]uint32
}

func (p *pendingBuffers) add(addr, length uint32) {
	p.blocks = append(p.blocks, [2]uint32{addr, length})
}

// Guest is an instantiated ledger guest.
// Calls are serialized: the guest handles one entry point at a time.
type Guest struct {
	module    api.Module
	logger    *slog.Logger
	scanLimit int
	mu        sync.Mutex
}

// Close releases the guest instance.
func (g *Guest) Close(ctx context.Context) error {
	return g.module.Close(ctx)
}

// Dispatch routes a request through dispatch_request.
func (g *Guest) Dispatch(ctx context.Context, req entities.Request) (entities.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return entities.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := g.DispatchRaw(ctx, string(data))
	if err != nil {
		return entities.Response{}, err
	}

	var resp entities.Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return entities.Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp, nil
}

// DispatchRaw passes an encoded request through dispatch_request and returns
// the encoded response.
func (g *Guest) DispatchRaw(ctx context.Context, request string) (string, error) {
	if strings.IndexByte(request, 0) >= 0 {
		return "", fmt.Errorf("request contains a zero byte")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	in, err := g.writeBytes(ctx, append([]byte(request), 0))
	if err != nil {
		return "", err
	}
	defer g.release(ctx, in, uint32(len(request)+1))

	return g.callForString(ctx, "dispatch_request", uint64(in))
}

// ExecuteCreditLeg returns the balance query for a credit to account.
func (g *Guest) ExecuteCreditLeg(ctx context.Context, amount, account string) (string, error) {
	return g.callLedger(ctx, "execute_credit_leg", amount, account)
}

// ApplyCreditResult folds the result of a balance query into a summary.
func (g *Guest) ApplyCreditResult(ctx context.Context, result, amount string) (string, error) {
	return g.callLedger(ctx, "apply_credit_result", result, amount)
}

// ExecuteDebitLeg returns the description of a debit from account.
func (g *Guest) ExecuteDebitLeg(ctx context.Context, amount, account string) (string, error) {
	return g.callLedger(ctx, "execute_debit_leg", amount, account)
}

// Describe returns the guest's manifest.
func (g *Guest) Describe(ctx context.Context) (entities.Manifest, error) {
	g.mu.Lock()
	raw, err := g.callForString(ctx, "describe")
	g.mu.Unlock()
	if err != nil {
		return entities.Manifest{}, err
	}

	var m entities.Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return entities.Manifest{}, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return m, nil
}

// callLedger passes two length-delimited strings and turns an "error: ..."
// result into a *GuestError.
func (g *Guest) callLedger(ctx context.Context, name, first, second string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, err := g.writeBytes(ctx, []byte(first))
	if err != nil {
		return "", err
	}
	defer g.release(ctx, a, uint32(len(first)))

	b, err := g.writeBytes(ctx, []byte(second))
	if err != nil {
		return "", err
	}
	defer g.release(ctx, b, uint32(len(second)))

	out, err := g.callForString(ctx, name,
		uint64(a), uint64(len(first)), uint64(b), uint64(len(second)))
	if err != nil {
		return "", err
	}
	if msg, ok := strings.CutPrefix(out, errorPrefix); ok {
		return "", &GuestError{EntryPoint: name, Message: msg}
	}
	return out, nil
}

// callForString calls an export returning a null-terminated buffer, copies
// the string out and releases the buffer.
func (g *Guest) callForString(ctx context.Context, name string, params ...uint64) (string, error) {
	results, err := g.call(ctx, name, params...)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("export %q returned no results", name)
	}

	return g.takeString(ctx, uint32(results[0]))
}

// takeString copies the null-terminated string at addr and releases the
// buffer. The buffer is released even when it cannot be read; the guest's
// tracked size governs, so the length passed is only advisory.
func (g *Guest) takeString(ctx context.Context, addr uint32) (string, error) {
	s, err := g.readNullTerminated(addr)
	if err != nil {
		g.release(ctx, addr, 0)
		return "", err
	}
	g.release(ctx, addr, uint32(len(s)+1))
	return s, nil
}

// call invokes an export and then releases any log buffers the guest handed
// over while it ran.
func (g *Guest) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	f := g.module.ExportedFunction(name)
	if f == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}

	pending := &pendingBuffers{}
	results, err := f.Call(context.WithValue(ctx, pendingKey{}, pending), params...)

	for _, blk := range pending.blocks {
		g.release(ctx, blk[0], blk[1])
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return results, nil
}

func (g *Guest) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := g.call(ctx, "allocate", uint64(size))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}
	return uint32(results[0]), nil
}

func (g *Guest) writeBytes(ctx context.Context, data []byte) (uint32, error) {
	addr, err := g.allocate(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if !g.module.Memory().Write(addr, data) {
		g.release(ctx, addr, uint32(len(data)))
		return 0, &MemoryError{Op: "write", Addr: addr, Len: uint32(len(data))}
	}
	return addr, nil
}

// release hands a buffer back to the guest. Failures are logged: the
// buffer is already unusable to the host either way.
func (g *Guest) release(ctx context.Context, addr, length uint32) {
	if _, err := g.call(ctx, "release_buffer", uint64(addr), uint64(length)); err != nil {
		g.logger.Warn("release_buffer failed", "addr", addr, "error", err)
	}
}

// readNullTerminated copies the string at addr up to its zero byte. The scan
// is bounded by the scan limit and the end of guest memory.
func (g *Guest) readNullTerminated(addr uint32) (string, error) {
	mem := g.module.Memory()
	if mem == nil {
		return "", fmt.Errorf("guest exports no memory")
	}

	size := mem.Size()
	if addr >= size {
		return "", &MemoryError{Op: "read", Addr: addr, Len: 1}
	}
	window := min(size-addr, uint32(g.scanLimit))

	data, ok := mem.Read(addr, window)
	if !ok {
		return "", &MemoryError{Op: "read", Addr: addr, Len: window}
	}
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return "", fmt.Errorf("no terminator within %d bytes at 0x%x", window, addr)
	}
	return string(data[:end]), nil
}
