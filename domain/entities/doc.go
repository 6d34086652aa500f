// Package entities provides the value types exchanged across the guest
// boundary: requests and responses for the dispatcher, ledger legs and
// balance query results, structured error details and the module manifest.
//
// All of these values are ephemeral. They are created and consumed within a
// single entry-point invocation and are never retained across calls.
package entities
