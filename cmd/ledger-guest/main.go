// Command ledger-guest is the guest module. Build it as a WASI reactor:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o ledger.wasm ./cmd/ledger-guest
//
// The host calls _initialize once and then the exported entry points.
package main

import _ "github.com/reglet-dev/ledger-guest/plugin" // registers the wasm exports

func main() {}
