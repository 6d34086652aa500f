package wireformat

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
)

// DecodeRequest parses the canonical JSON request form.
// Unknown keys are ignored; a body of any JSON type is kept verbatim.
func DecodeRequest(data []byte) (entities.Request, error) {
	var req entities.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return entities.Request{}, &errors.ParseError{What: "request JSON", Err: err}
	}
	return req, nil
}

// EncodeResponse serializes a response as
// {"statusCode":<int>,"headers":{...},"body":<value>}.
func EncodeResponse(resp entities.Response) ([]byte, error) {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("wireformat: encode response: %w", err)
	}
	return data, nil
}

// ReadRequest decodes a request from a null-terminated buffer.
func (c *Codec) ReadRequest(in NullTerminated) (entities.Request, error) {
	raw, err := c.ReadNullTerminated(in)
	if err != nil {
		return entities.Request{}, err
	}
	return DecodeRequest([]byte(raw))
}

// WriteResponse encodes a response into a null-terminated buffer.
// encoding/json escapes control characters, so the encoded form never
// contains a zero byte.
func (c *Codec) WriteResponse(resp entities.Response) (NullTerminated, error) {
	data, err := EncodeResponse(resp)
	if err != nil {
		return NullTerminated{}, err
	}
	return c.WriteNullTerminated(string(data))
}
