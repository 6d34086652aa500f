// Package host drives the ledger guest from the host side.
//
// It abstracts the underlying WASM engine (wazero), provides the
// ledger_host.log_message import and follows the guest's ownership rules on
// every call: inputs are allocated in the guest and released after the call,
// every returned buffer is read and then handed back through release_buffer.
package host
