package mcp

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

const (
	// JSONRPCVersion is the only supported value of the protocol marker
	JSONRPCVersion = "2.0"
	// ProtocolVersion is the MCP revision acknowledged in initialize
	ProtocolVersion = "2024-11-05"
)

// Method is the name of a supported request method
type Method string

// Supported methods
const (
	MethodInitialize Method = "initialize"
	MethodListTools  Method = "listTools"
	MethodCallTool   Method = "callTool"
)

// Methods returns the supported methods
func Methods() []Method {
	return []Method{MethodInitialize, MethodListTools, MethodCallTool}
}

// Request is the request envelope
type Request struct {
	// Jsonrpc is the protocol version marker, must be JSONRPCVersion
	Jsonrpc string `json:"jsonrpc"`
	// ID is the opaque correlation id, echoed verbatim in the response
	ID json.RawMessage `json:"id,omitempty"`
	// Method to invoke
	Method Method `json:"method"`
	// Params is the method specific payload
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the response envelope.
// Exactly one of Result or Error is set.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewRequest builds a request envelope
func NewRequest(id any, method Method, params any) (*Request, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal id")
	}
	req := &Request{
		Jsonrpc: JSONRPCVersion,
		ID:      rawID,
		Method:  method,
	}
	if params != nil {
		req.Params, err = json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal params")
		}
	}
	return req, nil
}

// NewResultResponse builds a successful response for the request id
func NewResultResponse(id json.RawMessage, result any) (*Response, error) {
	js, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result")
	}
	return &Response{
		Jsonrpc: JSONRPCVersion,
		ID:      normalizeID(id),
		Result:  js,
	}, nil
}

// NewErrorResponse builds an error response for the request id
func NewErrorResponse(id json.RawMessage, err error) *Response {
	return &Response{
		Jsonrpc: JSONRPCVersion,
		ID:      normalizeID(id),
		Error:   ToError(err),
	}
}

// ParseRequest decodes and validates a request envelope.
// On validation failures the returned request is not nil when the id
// could be recovered, so the error response can still be correlated.
func ParseRequest(payload []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, markf(ErrMalformedRequest, "empty payload")
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, markf(ErrMalformedRequest, "payload is not valid JSON")
	}
	if trimmed[0] != '{' {
		return nil, invalidShapef("request must be a JSON object")
	}

	// encoding/json matches keys case-insensitively, the envelope does not
	if key := mismatchedKey(trimmed); key != "" {
		return partialRequest(trimmed), invalidShapef("invalid request: unknown field %q, field names are case sensitive", key)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		// the envelope has wrong field types, try to keep the id
		return partialRequest(trimmed), invalidShapef("invalid request: %s", err.Error())
	}

	if req.Jsonrpc != JSONRPCVersion {
		return &req, markf(ErrUnsupportedProtocolVersion, "unsupported protocol version: %q", req.Jsonrpc)
	}
	if req.Method == "" {
		return &req, invalidShapef("missing method")
	}
	return &req, nil
}

var envelopeKeys = []string{"jsonrpc", "id", "method", "params"}

// mismatchedKey returns the first top level key that differs
// from an envelope field only by case
func mismatchedKey(payload []byte) string {
	var found string
	gjson.ParseBytes(payload).ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		for _, name := range envelopeKeys {
			if k != name && strings.EqualFold(k, name) {
				found = k
				return false
			}
		}
		return true
	})
	return found
}

// partialRequest returns a request with the id recovered from the payload
func partialRequest(payload []byte) *Request {
	partial := &Request{}
	if id := gjson.GetBytes(payload, "id"); id.Exists() {
		partial.ID = json.RawMessage(id.Raw)
	}
	return partial
}

// IDString returns the id as a string for logging
func (r *Request) IDString() string {
	if r == nil || len(r.ID) == 0 {
		return ""
	}
	return gjson.ParseBytes(r.ID).String()
}

// Decode unmarshals the result into v.
// If the response carries an error, it is returned as *Error.
func (r *Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 {
		return errors.New("response has no result")
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal result")
	}
	return nil
}

var nullID = json.RawMessage("null")

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return nullID
	}
	return id
}
