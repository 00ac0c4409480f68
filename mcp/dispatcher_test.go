package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/mocks/mockmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func echoTool() *funcTool {
	tool := newFuncTool("echo")
	tool.call = func(_ context.Context, args json.RawMessage) ([]*mcp.Content, error) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, errors.Wrap(err, "invalid arguments")
		}
		return []*mcp.Content{mcp.NewTextContent(req.Text)}, nil
	}
	return tool
}

func newDispatcher(t *testing.T, tools ...mcp.Tool) *mcp.Dispatcher {
	reg := mcp.NewRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return mcp.NewDispatcher(reg,
		mcp.Implementation{Name: "test-server", Version: "1.2.3"},
		mcp.DefaultCapabilities())
}

func dispatch(t *testing.T, d *mcp.Dispatcher, payload string) (*mcp.Response, string) {
	resp := d.Dispatch(context.Background(), []byte(payload))
	require.NotNil(t, resp)
	js, err := json.Marshal(resp)
	require.NoError(t, err)
	return resp, string(js)
}

func TestDispatch_Initialize(t *testing.T) {
	d := newDispatcher(t, echoTool())

	_, js := dispatch(t, d, `{"jsonrpc":"2.0","id":"1","method":"initialize","params":{}}`)
	assert.JSONEq(t, `{
		"jsonrpc":"2.0",
		"id":"1",
		"result":{
			"protocolVersion":"2024-11-05",
			"serverInfo":{"name":"test-server","version":"1.2.3"},
			"capabilities":{"tools":{},"prompts":{},"resources":{}}
		}
	}`, js)

	t.Run("client info", func(t *testing.T) {
		resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"cli","version":"0.1"}}}`)
		var res mcp.InitializeResult
		require.NoError(t, resp.Decode(&res))
		assert.Equal(t, "test-server", res.ServerInfo.Name)
	})

	t.Run("custom capabilities", func(t *testing.T) {
		caps := mcp.Capabilities{
			Tools:                    &mcp.Capability{"listChanged": false},
			ExperimentalCapabilities: &mcp.Capability{"bus": "nats"},
		}
		d := mcp.NewDispatcher(mcp.NewRegistry(), mcp.Implementation{Name: "n", Version: "v"}, caps)
		_, js := dispatch(t, d, `{"jsonrpc":"2.0","id":"1","method":"initialize"}`)
		assert.JSONEq(t, `{
			"jsonrpc":"2.0",
			"id":"1",
			"result":{
				"protocolVersion":"2024-11-05",
				"serverInfo":{"name":"n","version":"v"},
				"capabilities":{"tools":{"listChanged":false},"experimental_capabilities":{"bus":"nats"}}
			}
		}`, js)
	})
}

func TestDispatch_ListTools(t *testing.T) {
	d := newDispatcher(t, newFuncTool("b"), newFuncTool("a"), newFuncTool("c"))

	resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"listTools"}`)
	var res mcp.ListToolsResult
	require.NoError(t, resp.Decode(&res))
	require.Len(t, res.Tools, 3)
	assert.Equal(t, "b", res.Tools[0].Name)
	assert.Equal(t, "a", res.Tools[1].Name)
	assert.Equal(t, "c", res.Tools[2].Name)
	assert.Equal(t, "tool a", res.Tools[1].Description)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, res.Tools[1].InputSchema)

	_, js := dispatch(t, newDispatcher(t), `{"jsonrpc":"2.0","id":1,"method":"listTools"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`, js)
}

func TestDispatch_CallTool(t *testing.T) {
	d := newDispatcher(t, echoTool())

	_, js := dispatch(t, d, `{"jsonrpc":"2.0","id":"7","method":"callTool","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"7","result":[{"type":"text","text":"hi"}]}`, js)
}

func TestDispatch_CallToolMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	tool := mockmcp.NewMockTool(ctrl)
	tool.EXPECT().Name().Return("mock").AnyTimes()
	tool.EXPECT().Call(gomock.Any(), json.RawMessage(`{}`)).Return(nil, nil)
	tool.EXPECT().Call(gomock.Any(), json.RawMessage(`{"a": [1, 2]}`)).
		Return([]*mcp.Content{mcp.NewTextContent("one"), mcp.NewTextContent("two")}, nil)

	d := newDispatcher(t, tool)

	// missing arguments are passed as empty object, nil content is empty list
	_, js := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"callTool","params":{"name":"mock"}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":[]}`, js)

	// arguments are passed untouched
	_, js = dispatch(t, d, `{"jsonrpc":"2.0","id":2,"method":"callTool","params":{"name":"mock","arguments":{"a": [1, 2]}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":[{"type":"text","text":"one"},{"type":"text","text":"two"}]}`, js)
}

func TestDispatch_Errors(t *testing.T) {
	failing := newFuncTool("failing")
	failing.call = func(context.Context, json.RawMessage) ([]*mcp.Content, error) {
		return nil, errors.New("upstream API returned 500")
	}
	panicking := newFuncTool("panicking")
	panicking.call = func(context.Context, json.RawMessage) ([]*mcp.Content, error) {
		panic("nil map")
	}
	bad := newFuncTool("bad")
	bad.call = func(context.Context, json.RawMessage) ([]*mcp.Content, error) {
		return []*mcp.Content{{Type: "image"}}, nil
	}

	missingText := newFuncTool("missing-text")
	missingText.call = func(context.Context, json.RawMessage) ([]*mcp.Content, error) {
		return []*mcp.Content{{Type: mcp.ContentTypeText}}, nil
	}

	d := newDispatcher(t, echoTool(), failing, panicking, bad, missingText)

	tcases := []struct {
		name    string
		payload string
		exp     string
	}{
		{
			name:    "unknown tool",
			payload: `{"jsonrpc":"2.0","id":"1","method":"callTool","params":{"name":"missing","arguments":{}}}`,
			exp:     `{"jsonrpc":"2.0","id":"1","error":{"code":-32001,"message":"unknown tool: missing","data":{"kind":"ToolNotFound"}}}`,
		},
		{
			name:    "tool failure",
			payload: `{"jsonrpc":"2.0","id":"2","method":"callTool","params":{"name":"failing","arguments":{}}}`,
			exp:     `{"jsonrpc":"2.0","id":"2","error":{"code":-32000,"message":"upstream API returned 500","data":{"kind":"ToolExecutionFailure"}}}`,
		},
		{
			name:    "tool panic",
			payload: `{"jsonrpc":"2.0","id":"3","method":"callTool","params":{"name":"panicking"}}`,
			exp:     `{"jsonrpc":"2.0","id":"3","error":{"code":-32000,"message":"internal error: nil map","data":{"kind":"ToolExecutionFailure"}}}`,
		},
		{
			name:    "unknown method",
			payload: `{"jsonrpc":"2.0","id":4,"method":"listPrompts"}`,
			exp:     `{"jsonrpc":"2.0","id":4,"error":{"code":-32601,"message":"method not found: listPrompts","data":{"kind":"MethodNotFound"}}}`,
		},
		{
			name:    "missing params",
			payload: `{"jsonrpc":"2.0","id":5,"method":"callTool"}`,
			exp:     `{"jsonrpc":"2.0","id":5,"error":{"code":-32602,"message":"missing params","data":{"kind":"InvalidParams"}}}`,
		},
		{
			name:    "missing tool name",
			payload: `{"jsonrpc":"2.0","id":6,"method":"callTool","params":{"arguments":{}}}`,
			exp:     `{"jsonrpc":"2.0","id":6,"error":{"code":-32602,"message":"missing tool name","data":{"kind":"InvalidParams"}}}`,
		},
		{
			name:    "malformed json",
			payload: `{"jsonrpc":"2.0",`,
			exp:     `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"payload is not valid JSON","data":{"kind":"MalformedRequest"}}}`,
		},
		{
			name:    "unsupported version",
			payload: `{"jsonrpc":"1.0","id":"v","method":"initialize"}`,
			exp:     `{"jsonrpc":"2.0","id":"v","error":{"code":-32600,"message":"unsupported protocol version: \"1.0\"","data":{"kind":"UnsupportedProtocolVersion"}}}`,
		},
		{
			name:    "case mismatched keys",
			payload: `{"JSONRPC":"2.0","ID":"x","METHOD":"listTools"}`,
			exp:     `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request: unknown field \"JSONRPC\", field names are case sensitive","data":{"kind":"MalformedRequest"}}}`,
		},
		{
			name:    "missing method",
			payload: `{"jsonrpc":"2.0","id":"m"}`,
			exp:     `{"jsonrpc":"2.0","id":"m","error":{"code":-32600,"message":"missing method","data":{"kind":"MalformedRequest"}}}`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, js := dispatch(t, d, tc.payload)
			assert.JSONEq(t, tc.exp, js)
		})
	}

	t.Run("invalid params", func(t *testing.T) {
		resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":8,"method":"callTool","params":["echo"]}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcp.CodeInvalidParams, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "failed to unmarshal params")
	})

	t.Run("unsupported content", func(t *testing.T) {
		resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":9,"method":"callTool","params":{"name":"bad"}}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcp.CodeToolExecutionFailure, resp.Error.Code)
		assert.Equal(t, mcp.KindToolExecutionFailure, resp.Error.Kind())
		assert.Contains(t, resp.Error.Message, "tool bad returned invalid content")
		assert.Contains(t, resp.Error.Message, `unsupported content type: "image"`)
		assert.Equal(t, "9", string(resp.ID))
	})

	t.Run("text content without text", func(t *testing.T) {
		resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":11,"method":"callTool","params":{"name":"missing-text"}}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcp.CodeToolExecutionFailure, resp.Error.Code)
		assert.Equal(t, mcp.KindToolExecutionFailure, resp.Error.Kind())
		assert.Contains(t, resp.Error.Message, "text content is missing")
	})

	t.Run("dispatch still works after panic", func(t *testing.T) {
		_, js := dispatch(t, d, `{"jsonrpc":"2.0","id":"10","method":"callTool","params":{"name":"echo","arguments":{"text":"alive"}}}`)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"10","result":[{"type":"text","text":"alive"}]}`, js)
	})
}

func TestDispatch_CorrelationID(t *testing.T) {
	d := newDispatcher(t, echoTool())

	ids := []string{`"abc"`, `42`, `-1.5`, `{"nested":["x",1]}`, `[1,2,3]`, `null`, `""`}
	for _, id := range ids {
		for _, method := range []string{"initialize", "listTools", "unknown"} {
			resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":`+id+`,"method":"`+method+`"}`)
			assert.Equal(t, id, string(resp.ID), "method %s", method)
		}
		resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","id":`+id+`,"method":"callTool","params":{"name":"missing"}}`)
		assert.Equal(t, id, string(resp.ID))
	}

	resp, _ := dispatch(t, d, `{"jsonrpc":"2.0","method":"listTools"}`)
	assert.Equal(t, "null", string(resp.ID))
}
