//go:build !wasip1

package log

// HostSink returns nil outside WASM builds: there is no host to receive the
// message, so nothing is allocated for it.
func HostSink() Sink {
	return nil
}
