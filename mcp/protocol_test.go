package mcp_test

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	req, err := mcp.ParseRequest([]byte(`{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.MethodInitialize, req.Method)
	assert.Equal(t, `"1"`, string(req.ID))
	assert.Equal(t, "1", req.IDString())
	assert.JSONEq(t, `{}`, string(req.Params))

	tcases := []struct {
		name    string
		payload string
		code    mcp.ErrorCode
		class   error
		id      string
	}{
		{name: "empty", payload: "  ", code: mcp.CodeParseError, class: mcp.ErrMalformedRequest},
		{name: "not json", payload: "{not json", code: mcp.CodeParseError, class: mcp.ErrMalformedRequest},
		{name: "array", payload: `[1,2]`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest},
		{name: "wrong types", payload: `{"jsonrpc":"2.0","id":7,"method":42}`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest, id: "7"},
		{name: "version", payload: `{"jsonrpc":"1.0","id":"a","method":"initialize"}`, code: mcp.CodeInvalidRequest, class: mcp.ErrUnsupportedProtocolVersion, id: `"a"`},
		{name: "no version", payload: `{"id":"a","method":"initialize"}`, code: mcp.CodeInvalidRequest, class: mcp.ErrUnsupportedProtocolVersion, id: `"a"`},
		{name: "no method", payload: `{"jsonrpc":"2.0","id":3}`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest, id: "3"},
		{name: "upper case keys", payload: `{"JSONRPC":"2.0","ID":"x","METHOD":"listTools"}`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest},
		{name: "mixed case method", payload: `{"jsonrpc":"2.0","id":"y","Method":"listTools"}`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest, id: `"y"`},
		{name: "mixed case params", payload: `{"jsonrpc":"2.0","id":5,"method":"callTool","Params":{}}`, code: mcp.CodeInvalidRequest, class: mcp.ErrMalformedRequest, id: "5"},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := mcp.ParseRequest([]byte(tc.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.class), "unexpected class: %v", err)
			assert.Equal(t, tc.code, mcp.ToError(err).Code)
			if tc.id != "" {
				require.NotNil(t, req)
				assert.Equal(t, tc.id, string(req.ID))
			}
		})
	}
}

func TestParseRequest_CaseSensitiveKeys(t *testing.T) {
	req, err := mcp.ParseRequest([]byte(`{"JSONRPC":"2.0","ID":"x","METHOD":"listTools"}`))
	require.Error(t, err)
	assert.EqualError(t, err, `invalid request: unknown field "JSONRPC", field names are case sensitive`)
	require.NotNil(t, req)
	assert.Empty(t, req.ID)

	// unrelated extra keys are ignored
	req, err = mcp.ParseRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"listTools","Meta":{}}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.MethodListTools, req.Method)
}

func TestNewRequest(t *testing.T) {
	req, err := mcp.NewRequest("42", mcp.MethodCallTool, mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hi"}`),
	})
	require.NoError(t, err)

	js, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":"42","method":"callTool","params":{"name":"echo","arguments":{"text":"hi"}}}`,
		string(js))

	req, err = mcp.NewRequest(1, mcp.MethodListTools, nil)
	require.NoError(t, err)
	assert.Empty(t, req.Params)

	_, err = mcp.NewRequest(1, mcp.MethodListTools, func() {})
	assert.ErrorContains(t, err, "failed to marshal params")
}

func TestResponse(t *testing.T) {
	resp, err := mcp.NewResultResponse(json.RawMessage(`{"n":1}`), []string{"a"})
	require.NoError(t, err)
	js, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":{"n":1},"result":["a"]}`, string(js))

	var list []string
	require.NoError(t, resp.Decode(&list))
	assert.Equal(t, []string{"a"}, list)

	resp = mcp.NewErrorResponse(nil, errors.Mark(errors.New("boom"), mcp.ErrToolExecutionFailure))
	js, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"boom","data":{"kind":"ToolExecutionFailure"}}}`,
		string(js))

	err = resp.Decode(&list)
	var rpcErr *mcp.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, mcp.KindToolExecutionFailure, rpcErr.Kind())
	assert.EqualError(t, err, "RPC error -32000: boom")

	assert.EqualError(t, (&mcp.Response{}).Decode(&list), "response has no result")
}

func TestMethods(t *testing.T) {
	assert.Equal(t, []mcp.Method{"initialize", "listTools", "callTool"}, mcp.Methods())
}
