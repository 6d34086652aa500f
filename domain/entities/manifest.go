package entities

import "encoding/json"

// Encoding names the string convention used by an entry point parameter or
// result.
type Encoding string

const (
	// EncodingNone marks scalar parameters such as lengths.
	EncodingNone Encoding = "none"
	// EncodingLengthDelimited means the consumer reads exactly length bytes.
	EncodingLengthDelimited Encoding = "length_delimited"
	// EncodingNullTerminated means the consumer scans for a zero byte.
	EncodingNullTerminated Encoding = "null_terminated"
)

// EntryPoint documents one boundary function and its ownership contract.
type EntryPoint struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
	Input       Encoding `json:"input"`
	Output      Encoding `json:"output"`
	// CallerReleases is true when the host must hand the returned address
	// back through release_buffer.
	CallerReleases bool `json:"caller_releases"`
}

// Manifest describes the guest module to a host.
type Manifest struct {
	Schemas     map[string]json.RawMessage `json:"schemas,omitempty"`
	Name        string                     `json:"name"`
	Version     string                     `json:"version"`
	Description string                     `json:"description,omitempty"`
	EntryPoints []EntryPoint               `json:"entry_points"`
	Imports     []EntryPoint               `json:"imports"`
}
