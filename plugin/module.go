// Package plugin exposes the guest entry points.
//
// Module carries one method per boundary function. Under wasip1 the methods
// of a process-wide Module are exported with //go:wasmexport; on other
// platforms the same methods are driven directly by tests.
//
// Ownership: every address returned by a Module method is a fresh block the
// caller must hand back through ReleaseBuffer. Input buffers stay owned by
// the caller and are never released by the guest.
package plugin

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/reglet-dev/ledger-guest/application/ledger"
	"github.com/reglet-dev/ledger-guest/application/router"
	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
	"github.com/reglet-dev/ledger-guest/internal/abi"
	guestlog "github.com/reglet-dev/ledger-guest/log"
	"github.com/reglet-dev/ledger-guest/wireformat"
)

// errorPrefix marks a ledger entry point result as an error message.
const errorPrefix = "error: "

// internalErrorResponse is written when even the error response cannot be
// encoded.
const internalErrorResponse = `{"statusCode":500,"headers":{"Content-Type":"application/json"},"body":{"error":"Internal Server Error"}}`

type config struct {
	arena     *abi.Arena
	sink      guestlog.Sink
	level     slog.Level
	scanLimit int
	maxTotal  int
}

// Option configures a Module.
type Option func(*config)

// WithArena makes the module allocate from an existing arena.
// WithMaxTotalAllocations is ignored when an arena is supplied.
func WithArena(arena *abi.Arena) Option {
	return func(c *config) {
		c.arena = arena
	}
}

// WithSink sets the host logging sink. Without one, diagnostics are dropped
// and nothing is allocated for them.
func WithSink(sink guestlog.Sink) Option {
	return func(c *config) {
		c.sink = sink
	}
}

// WithLogLevel sets the minimum level forwarded to the sink.
func WithLogLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithScanLimit bounds the terminator scan of null-terminated input.
func WithScanLimit(limit int) Option {
	return func(c *config) {
		c.scanLimit = limit
	}
}

// WithMaxTotalAllocations bounds the bytes live in the module's arena.
func WithMaxTotalAllocations(limit int) Option {
	return func(c *config) {
		c.maxTotal = limit
	}
}

// Module implements the boundary entry points.
type Module struct {
	arena  *abi.Arena
	codec  *wireformat.Codec
	logger *slog.Logger
	router *router.Router
	ledger *ledger.Formatter
}

// New creates a Module with its own arena unless WithArena is given.
func New(opts ...Option) *Module {
	cfg := config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&cfg)
	}

	arena := cfg.arena
	if arena == nil {
		arena = abi.NewArena(abi.WithMaxTotalAllocations(cfg.maxTotal))
	}
	codec := wireformat.NewCodec(arena, wireformat.WithScanLimit(cfg.scanLimit))
	logger := guestlog.NewLogger(guestlog.NewBridge(codec, cfg.sink), guestlog.WithLevel(cfg.level))

	return &Module{
		arena:  arena,
		codec:  codec,
		logger: logger,
		router: router.New(logger),
		ledger: ledger.NewFormatter(logger),
	}
}

// Arena returns the arena backing the module's buffers.
func (m *Module) Arena() *abi.Arena {
	return m.arena
}

// Codec returns the codec the module reads and writes buffers with.
func (m *Module) Codec() *wireformat.Codec {
	return m.codec
}

// Router returns the request router so that extra routes can be registered.
func (m *Module) Router() *router.Router {
	return m.router
}

// Allocate reserves length zeroed bytes and returns their address.
// Exceeding the arena limit panics with *errors.AllocationError.
func (m *Module) Allocate(length uint32) uint32 {
	return m.arena.Allocate(length).Addr
}

// ReleaseBuffer returns a block for destruction. length is advisory.
// Releasing an address that is not live is logged and otherwise ignored.
func (m *Module) ReleaseBuffer(addr, length uint32) {
	if err := m.arena.Release(addr, length); err != nil {
		m.logger.Warn("Rejected release", "error", err)
	}
}

// DispatchRequest decodes a null-terminated JSON request at addr, routes it
// and returns the address of the null-terminated JSON response.
// A request that cannot be decoded yields a 400 response.
func (m *Module) DispatchRequest(addr uint32) (out uint32) {
	defer m.recoverResponse(&out)

	req, err := m.codec.ReadRequest(wireformat.NullTerminated{Addr: addr})
	if err != nil {
		m.logger.Warn("Rejected request", "error", err)
		return m.writeResponse(router.ErrorResponse(http.StatusBadRequest, err))
	}

	m.logger.Debug("Dispatching request", "method", req.Method, "path", req.Path)
	return m.writeResponse(m.router.Route(req))
}

// ExecuteCreditLeg reads a length-delimited amount and account and returns
// the null-terminated balance query for the account, or an error string.
func (m *Module) ExecuteCreditLeg(amountAddr, amountLen, accountAddr, accountLen uint32) (out uint32) {
	defer m.recoverString("execute_credit_leg", &out)

	amount, account, err := m.readPair(
		wireformat.LengthDelimited{Addr: amountAddr, Len: amountLen},
		wireformat.LengthDelimited{Addr: accountAddr, Len: accountLen},
	)
	if err != nil {
		return m.writeResult("", err)
	}
	return m.writeResult(m.ledger.ExecuteCreditLeg(amount, account))
}

// ApplyCreditResult reads a length-delimited query result and amount and
// returns the null-terminated balance summary, or an error string.
func (m *Module) ApplyCreditResult(resultAddr, resultLen, amountAddr, amountLen uint32) (out uint32) {
	defer m.recoverString("apply_credit_result", &out)

	result, amount, err := m.readPair(
		wireformat.LengthDelimited{Addr: resultAddr, Len: resultLen},
		wireformat.LengthDelimited{Addr: amountAddr, Len: amountLen},
	)
	if err != nil {
		return m.writeResult("", err)
	}
	return m.writeResult(m.ledger.ApplyCreditResult(result, amount))
}

// ExecuteDebitLeg reads a length-delimited amount and account and returns
// the null-terminated debit description, or an error string.
func (m *Module) ExecuteDebitLeg(amountAddr, amountLen, accountAddr, accountLen uint32) (out uint32) {
	defer m.recoverString("execute_debit_leg", &out)

	amount, account, err := m.readPair(
		wireformat.LengthDelimited{Addr: amountAddr, Len: amountLen},
		wireformat.LengthDelimited{Addr: accountAddr, Len: accountLen},
	)
	if err != nil {
		return m.writeResult("", err)
	}
	return m.writeResult(m.ledger.BuildDebitLeg(amount, account))
}

// Describe returns the address of the null-terminated JSON manifest.
func (m *Module) Describe() (out uint32) {
	defer m.recoverString("describe", &out)

	data, err := ManifestJSON()
	if err != nil {
		return m.writeResult("", err)
	}
	return m.writeResult(string(data), nil)
}

func (m *Module) readPair(first, second wireformat.LengthDelimited) (string, string, error) {
	a, err := m.codec.ReadLengthDelimited(first)
	if err != nil {
		return "", "", err
	}
	b, err := m.codec.ReadLengthDelimited(second)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

func (m *Module) writeResponse(resp entities.Response) uint32 {
	out, err := m.codec.WriteResponse(resp)
	if err == nil {
		return out.Addr
	}

	m.logger.Error("Failed to encode response", "error", err)
	out, err = m.codec.WriteResponse(router.ErrorResponse(http.StatusInternalServerError, err))
	if err != nil {
		out, _ = m.codec.WriteNullTerminated(internalErrorResponse)
	}
	return out.Addr
}

// writeResult encodes a ledger result, or "error: <message>" when err is set.
func (m *Module) writeResult(s string, err error) uint32 {
	if err != nil {
		s = errorPrefix + err.Error()
	}
	out, werr := m.codec.WriteNullTerminated(s)
	if werr != nil {
		m.logger.Error("Failed to encode result", "error", werr)
		out, _ = m.codec.WriteNullTerminated(errorPrefix + werr.Error())
	}
	return out.Addr
}

// recoverResponse turns a handler panic into a 500 response.
// Allocation failure is fatal and keeps unwinding.
func (m *Module) recoverResponse(out *uint32) {
	r := recover()
	if r == nil {
		return
	}
	if allocErr, ok := r.(*errors.AllocationError); ok {
		panic(allocErr)
	}

	detail := entities.NewErrorDetail("panic", fmt.Sprintf("dispatch_request panic: %v", r))
	m.logger.Error("Recovered panic", "entry_point", "dispatch_request", "error", detail.Message)
	*out = m.writeResponse(router.ErrorResponse(http.StatusInternalServerError, detail))
}

// recoverString turns a panic into an "error: internal ..." result.
func (m *Module) recoverString(entryPoint string, out *uint32) {
	r := recover()
	if r == nil {
		return
	}
	if allocErr, ok := r.(*errors.AllocationError); ok {
		panic(allocErr)
	}

	m.logger.Error("Recovered panic", "entry_point", entryPoint, "panic", fmt.Sprint(r))
	*out = m.writeResult("", fmt.Errorf("internal %s panic: %v", entryPoint, r))
}
