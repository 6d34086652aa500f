// Package log routes structured logging (slog) from the guest to the host's
// log_message import.
package log

import (
	"context"
	"log/slog"
	"strings"
)

// Handler implements slog.Handler by formatting each record as a single
// logfmt line and forwarding it through a Bridge.
type Handler struct {
	inner slog.Handler
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Level
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are filtered on the guest side and never cross
// the boundary.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a Handler that writes through bridge.
func NewHandler(bridge *Bridge, opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	inner := slog.NewTextHandler(bridgeWriter{bridge: bridge}, &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.addSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// The host stamps its own receive time.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return &Handler{inner: inner}
}

// NewLogger is shorthand for slog.New(NewHandler(bridge, opts...)).
func NewLogger(bridge *Bridge, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(bridge, opts...))
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle formats the record and sends it to the host.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	return h.inner.Handle(ctx, record)
}

// WithAttrs returns a new Handler that includes the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// bridgeWriter adapts a Bridge to io.Writer. slog.TextHandler issues exactly
// one Write per record.
type bridgeWriter struct {
	bridge *Bridge
}

func (w bridgeWriter) Write(p []byte) (int, error) {
	w.bridge.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
