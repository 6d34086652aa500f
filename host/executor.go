package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Executor owns the wazero runtime the guests run in.
type Executor struct {
	runtime   wazero.Runtime
	logger    *slog.Logger
	scanLimit int
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{
		logger:    slog.Default(),
		scanLimit: DefaultScanLimit,
	}
	for _, opt := range opts {
		opt(e)
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if err := e.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// Close releases resources held by the executor and every guest loaded in it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Load instantiates a guest module. Reactor modules have their _initialize
// export called once before any entry point.
func (e *Executor) Load(ctx context.Context, wasmBytes []byte) (*Guest, error) {
	// Anonymous, so the same binary can be loaded more than once.
	cfg := wazero.NewModuleConfig().WithName("")

	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	g := &Guest{module: mod, logger: e.logger, scanLimit: e.scanLimit}
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := g.call(ctx, "_initialize"); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	return g, nil
}

func (e *Executor) registerHostFunctions(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(e.logMessage).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// logMessage receives one length-delimited log line from a guest. The buffer
// is queued for release once the current entry point returns.
func (e *Executor) logMessage(ctx context.Context, m api.Module, addr, length uint32) {
	payload, ok := m.Memory().Read(addr, length)
	if !ok {
		e.logger.Warn("guest log out of range", "addr", addr, "len", length)
		return
	}
	e.logger.Info("guest log", "msg", string(payload))

	if pending, ok := ctx.Value(pendingKey{}).(*pendingBuffers); ok {
		pending.add(addr, length)
	}
}
