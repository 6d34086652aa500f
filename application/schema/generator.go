// Package schema generates the JSON schemas published by the describe entry
// point.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/ledger-guest/domain/entities"
)

// Schema names used as keys in the manifest.
const (
	RequestSchema     = "request"
	ResponseSchema    = "response"
	QueryResultSchema = "query_result"
)

// Generate creates a compact JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func Generate(v any) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}

// Boundary returns the schemas of every JSON document crossing the
// boundary, keyed by schema name.
func Boundary() (map[string]json.RawMessage, error) {
	types := map[string]any{
		RequestSchema:     entities.Request{},
		ResponseSchema:    entities.Response{},
		QueryResultSchema: entities.QueryResult{},
	}

	schemas := make(map[string]json.RawMessage, len(types))
	for name, v := range types {
		s, err := Generate(v)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		schemas[name] = s
	}
	return schemas, nil
}
