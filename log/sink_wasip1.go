//go:build wasip1

package log

// Define the host function signature for logging messages.
// This matches the log_message function registered by the host package.
//
//go:wasmimport ledger_host log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(addr, length uint32)

// HostSink returns the imported ledger_host.log_message function.
func HostSink() Sink {
	return host_log_message
}
