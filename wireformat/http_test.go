package wireformat

import (
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	raw := `{"method":"POST","path":"/api/data","headers":{"X-Request-Id":"42","content-type":"text/plain"},"body":{"x":1}}`

	req, err := DecodeRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/data", req.Path)
	assert.Equal(t, "42", req.Headers["X-Request-Id"], "header keys are case-preserved")
	assert.Equal(t, "text/plain", req.Headers["content-type"])
	assert.JSONEq(t, `{"x":1}`, string(req.Body))
}

func TestDecodeRequest_BodyKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string body", raw: `{"method":"PUT","path":"/","body":"plain"}`, want: `"plain"`},
		{name: "array body", raw: `{"method":"PUT","path":"/","body":[1,2]}`, want: `[1,2]`},
		{name: "absent body", raw: `{"method":"GET","path":"/"}`, want: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(req.Body))
		})
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	_, err := DecodeRequest([]byte("GET /api/data\nHost: x\n\n"))

	var parseErr *errors.ParseError
	require.True(t, stdErrors.As(err, &parseErr), "the line-oriented form is not accepted")
	assert.Equal(t, "request JSON", parseErr.What)
}

func TestEncodeResponse_FieldNames(t *testing.T) {
	data, err := EncodeResponse(entities.Response{
		StatusCode: 201,
		Headers:    entities.JSONHeaders(),
		Body:       map[string]any{"message": "ok"},
	})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"statusCode":201,"headers":{"Content-Type":"application/json"},"body":{"message":"ok"}}`,
		string(data))
	assert.NotContains(t, string(data), "status_code")
}

func TestEncodeResponse_NilHeaders(t *testing.T) {
	data, err := EncodeResponse(entities.Response{StatusCode: 200, Body: "x"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{}, decoded["headers"])
}

func TestEncodeResponse_Unmarshalable(t *testing.T) {
	_, err := EncodeResponse(entities.Response{StatusCode: 200, Body: make(chan int)})
	assert.Error(t, err)
}

func TestReadRequestWriteResponse(t *testing.T) {
	c, arena := newTestCodec()

	in, err := c.WriteNullTerminated(`{"method":"GET","path":"/api/data"}`)
	require.NoError(t, err)

	req, err := c.ReadRequest(in)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)

	out, err := c.WriteResponse(entities.Response{StatusCode: 200, Headers: entities.JSONHeaders(), Body: "\x00hidden"})
	require.NoError(t, err)

	encoded, err := c.ReadNullTerminated(out)
	require.NoError(t, err, "JSON escapes zero bytes so the terminator is unambiguous")
	assert.Contains(t, encoded, `\u0000hidden`)

	require.NoError(t, arena.Release(in.Addr, 0))
	require.NoError(t, arena.Release(out.Addr, 0))
}
