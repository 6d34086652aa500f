package host

import "log/slog"

// DefaultScanLimit bounds the terminator scan over a guest result (1MB).
const DefaultScanLimit = 1 * 1024 * 1024

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithLogger sets the logger that receives guest log lines.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithScanLimit bounds how far a null-terminated guest result is scanned.
// Zero or negative limits are ignored.
func WithScanLimit(limit int) Option {
	return func(e *Executor) {
		if limit > 0 {
			e.scanLimit = limit
		}
	}
}
