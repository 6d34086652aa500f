package entities

import "encoding/json"

// ContentTypeJSON is the content type carried by every dispatcher response.
const ContentTypeJSON = "application/json"

// Request is an abstract HTTP-like request decoded from the boundary.
// The canonical textual form is a single JSON object:
//
//	{"method":"POST","path":"/api/data","headers":{"X-Id":"1"},"body":{"x":1}}
//
// Header keys are case-preserved. Body is kept as raw JSON and passed
// through handlers without validation.
type Request struct {
	Headers map[string]string `json:"headers,omitempty"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Response is the structured result of routing a Request.
// It always serializes with the "statusCode" key; "status_code" is never
// produced.
type Response struct {
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
	StatusCode int               `json:"statusCode"`
}

// JSONHeaders returns a fresh header map carrying the JSON content type.
func JSONHeaders() map[string]string {
	return map[string]string{"Content-Type": ContentTypeJSON}
}
