package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus", "mcp")

var emptyArguments = json.RawMessage("{}")

// Dispatcher parses request envelopes, routes them by method
// and builds the response envelopes.
type Dispatcher struct {
	registry *Registry
	info     Implementation
	caps     Capabilities
}

// NewDispatcher returns a dispatcher over the registry.
// The registry must not be modified after this call.
func NewDispatcher(registry *Registry, info Implementation, caps Capabilities) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		info:     info,
		caps:     caps.Clone(),
	}
}

// Dispatch handles a single raw request and returns its response.
// The response is never nil: every failure, including a panic
// raised by a tool, is converted into an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) *Response {
	req, err := ParseRequest(payload)
	if err != nil {
		var id json.RawMessage
		method := "invalid"
		if req != nil {
			id = req.ID
			if req.Method != "" {
				method = string(req.Method)
			}
		}
		resp := NewErrorResponse(id, err)
		metricskey.StatsRequestsFailed.IncrCounter(1, method, string(resp.Error.Kind()))
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "parse",
			"id", req.IDString(),
			"err", err.Error(),
		)
		return resp
	}

	method := string(req.Method)
	started := time.Now()
	metricskey.StatsRequestsReceived.IncrCounter(1, method)
	defer metricskey.PerfRequest.MeasureSince(started, method)

	logger.ContextKV(ctx, xlog.DEBUG,
		"method", method,
		"id", req.IDString(),
	)

	result, err := d.route(ctx, req)
	if err != nil {
		resp := NewErrorResponse(req.ID, err)
		metricskey.StatsRequestsFailed.IncrCounter(1, method, string(resp.Error.Kind()))
		logger.ContextKV(ctx, xlog.DEBUG,
			"method", method,
			"id", req.IDString(),
			"err", err.Error(),
		)
		return resp
	}

	resp, err := NewResultResponse(req.ID, result)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"method", method,
			"id", req.IDString(),
			"err", err.Error(),
		)
		return NewErrorResponse(req.ID, err)
	}
	return resp
}

func (d *Dispatcher) route(ctx context.Context, req *Request) (any, error) {
	switch req.Method {
	case MethodInitialize:
		return d.initialize(ctx, req)
	case MethodListTools:
		return d.listTools(ctx, req)
	case MethodCallTool:
		return d.callTool(ctx, req)
	default:
		return nil, markf(ErrMethodNotFound, "method not found: %s", req.Method)
	}
}

func (d *Dispatcher) initialize(ctx context.Context, req *Request) (*InitializeResult, error) {
	var params InitializeParams
	if !isEmptyJSON(req.Params) {
		// client info is informational, a bad shape does not fail the handshake
		if err := json.Unmarshal(req.Params, &params); err != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "reason", "initialize_params", "err", err.Error())
		}
	}
	if params.ClientInfo != nil {
		logger.ContextKV(ctx, xlog.INFO,
			"client", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
			"protocol", params.ProtocolVersion,
		)
	}

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      d.info,
		Capabilities:    d.caps,
	}, nil
}

func (d *Dispatcher) listTools(_ context.Context, _ *Request) (*ListToolsResult, error) {
	return &ListToolsResult{
		Tools: d.registry.List(),
	}, nil
}

func (d *Dispatcher) callTool(ctx context.Context, req *Request) (json.RawMessage, error) {
	if isEmptyJSON(req.Params) {
		return nil, markf(ErrInvalidParams, "missing params")
	}

	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, markf(ErrInvalidParams, "failed to unmarshal params: %s", err.Error())
	}
	if params.Name == "" {
		return nil, markf(ErrInvalidParams, "missing tool name")
	}

	tool, err := d.registry.Lookup(params.Name)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, params.Name)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool", params.Name,
			"available_tools", d.registry.Names(),
		)
		return nil, err
	}

	args := params.Arguments
	if isEmptyJSON(args) {
		args = emptyArguments
	}
	return d.execute(ctx, tool, params.Name, args)
}

// execute runs the tool and encodes its content, isolating its failures
// from the caller
func (d *Dispatcher) execute(ctx context.Context, tool Tool, name string, args json.RawMessage) (result json.RawMessage, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"tool", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = markf(ErrToolExecutionFailure, "internal error: %v", r)
		}

		metricskey.PerfToolCall.MeasureSince(started, name)
		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		} else {
			metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
		}
	}()

	content, err := tool.Call(ctx, args)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", name,
			"err", err.Error(),
		)
		return nil, errors.Mark(err, ErrToolExecutionFailure)
	}
	if content == nil {
		content = []*Content{}
	}

	result, err = json.Marshal(content)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"tool", name,
			"reason", "encode_content",
			"err", err.Error(),
		)
		return nil, errors.Mark(errors.Wrapf(err, "tool %s returned invalid content", name), ErrToolExecutionFailure)
	}
	return result, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
