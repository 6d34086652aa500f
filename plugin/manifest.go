package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/ledger-guest/application/schema"
	"github.com/reglet-dev/ledger-guest/domain/entities"
)

const (
	// Name is the module name reported by describe.
	Name = "ledger-guest"
	// Version is the module version reported by describe.
	Version = "0.1.0"
)

// HostModule is the import module the guest expects the host to provide.
const HostModule = "ledger_host"

// Manifest describes every entry point and host import together with the
// schemas of the JSON documents crossing the boundary.
func Manifest() (entities.Manifest, error) {
	schemas, err := schema.Boundary()
	if err != nil {
		return entities.Manifest{}, fmt.Errorf("failed to generate schemas: %w", err)
	}

	return entities.Manifest{
		Name:        Name,
		Version:     Version,
		Description: "Routes JSON requests and formats ledger credit and debit legs",
		Schemas:     schemas,
		EntryPoints: []entities.EntryPoint{
			{
				Name:        "allocate",
				Description: "Reserve zeroed guest memory",
				Params:      []string{"length"},
				Input:       entities.EncodingNone,
				Output:      entities.EncodingNone,
				// The host writes into the block and releases it after the call it was passed to.
				CallerReleases: true,
			},
			{
				Name:        "release_buffer",
				Description: "Return a block for destruction; length is advisory",
				Params:      []string{"addr", "length"},
				Input:       entities.EncodingNone,
				Output:      entities.EncodingNone,
			},
			{
				Name:           "dispatch_request",
				Description:    "Route a JSON request and return a JSON response",
				Params:         []string{"addr"},
				Input:          entities.EncodingNullTerminated,
				Output:         entities.EncodingNullTerminated,
				CallerReleases: true,
			},
			{
				Name:           "execute_credit_leg",
				Description:    "Build the balance lookup query for a credit",
				Params:         []string{"amount_addr", "amount_len", "account_addr", "account_len"},
				Input:          entities.EncodingLengthDelimited,
				Output:         entities.EncodingNullTerminated,
				CallerReleases: true,
			},
			{
				Name:           "apply_credit_result",
				Description:    "Add a credit to the balance found in a query result",
				Params:         []string{"result_addr", "result_len", "amount_addr", "amount_len"},
				Input:          entities.EncodingLengthDelimited,
				Output:         entities.EncodingNullTerminated,
				CallerReleases: true,
			},
			{
				Name:           "execute_debit_leg",
				Description:    "Describe a debit",
				Params:         []string{"amount_addr", "amount_len", "account_addr", "account_len"},
				Input:          entities.EncodingLengthDelimited,
				Output:         entities.EncodingNullTerminated,
				CallerReleases: true,
			},
			{
				Name:           "describe",
				Description:    "Return this manifest",
				Params:         []string{},
				Input:          entities.EncodingNone,
				Output:         entities.EncodingNullTerminated,
				CallerReleases: true,
			},
		},
		Imports: []entities.EntryPoint{
			{
				Name:        HostModule + ".log_message",
				Description: "Receive one diagnostic line; the guest never frees it",
				Params:      []string{"addr", "length"},
				Input:       entities.EncodingLengthDelimited,
				Output:      entities.EncodingNone,
			},
		},
	}, nil
}

// ManifestJSON returns the encoded manifest.
func ManifestJSON() ([]byte, error) {
	m, err := Manifest()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}
