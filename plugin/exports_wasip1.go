//go:build wasip1

package plugin

import guestlog "github.com/reglet-dev/ledger-guest/log"

// module serves every exported call. Calls are sequential; the arena mutex
// is the only guard on shared state.
var module = New(WithSink(guestlog.HostSink()))

//go:wasmexport allocate
func allocate(length uint32) uint32 {
	return module.Allocate(length)
}

//go:wasmexport release_buffer
func releaseBuffer(addr, length uint32) {
	module.ReleaseBuffer(addr, length)
}

//go:wasmexport dispatch_request
func dispatchRequest(addr uint32) uint32 {
	return module.DispatchRequest(addr)
}

//go:wasmexport execute_credit_leg
func executeCreditLeg(amountAddr, amountLen, accountAddr, accountLen uint32) uint32 {
	return module.ExecuteCreditLeg(amountAddr, amountLen, accountAddr, accountLen)
}

//go:wasmexport apply_credit_result
func applyCreditResult(resultAddr, resultLen, amountAddr, amountLen uint32) uint32 {
	return module.ApplyCreditResult(resultAddr, resultLen, amountAddr, amountLen)
}

//go:wasmexport execute_debit_leg
func executeDebitLeg(amountAddr, amountLen, accountAddr, accountLen uint32) uint32 {
	return module.ExecuteDebitLeg(amountAddr, amountLen, accountAddr, accountLen)
}

//go:wasmexport describe
func describe() uint32 {
	return module.Describe()
}
