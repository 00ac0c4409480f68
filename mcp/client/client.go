// Package client provides a requester for the MCP server over a bus transport.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus/mcp", "client")

// DefaultTimeout is applied to requests when ctx has no deadline
const DefaultTimeout = 30 * time.Second

// Client sends requests to the server subject and awaits the replies
type Client struct {
	tr      transport.Transport
	subject string
	info    mcp.Implementation
	timeout time.Duration
}

// Option configures the client
type Option func(*Client)

// WithClientInfo sets the client info sent in initialize
func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.info = mcp.Implementation{Name: name, Version: version}
	}
}

// WithTimeout sets the default request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// New returns a client for the server listening on subject
func New(tr transport.Transport, subject string, opts ...Option) *Client {
	c := &Client{
		tr:      tr,
		subject: subject,
		info:    mcp.Implementation{Name: "mcpbus-client", Version: "0.1.0"},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends the request and returns the response envelope.
// An error is returned only when no response was received;
// an error response is returned as is.
func (c *Client) Call(ctx context.Context, method mcp.Method, params any) (*mcp.Response, error) {
	id := uuid.NewString()
	req, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	js, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.ContextKV(ctx, xlog.DEBUG, "subject", c.subject, "method", method, "id", id)

	raw, err := c.tr.Request(ctx, c.subject, js)
	if err != nil {
		return nil, errors.Mark(errors.WithMessagef(err, "%s request failed", method), mcp.ErrTransportFailure)
	}

	var resp mcp.Response
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if got := string(resp.ID); got != string(req.ID) {
		return nil, errors.Newf("response id %s does not match request id %s", got, string(req.ID))
	}
	return &resp, nil
}

// Initialize performs the handshake
func (c *Client) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	var res mcp.InitializeResult
	err := c.do(ctx, mcp.MethodInitialize, &mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		ClientInfo:      &c.info,
		Capabilities:    map[string]any{},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTools returns the tools registered on the server
func (c *Client) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	var res mcp.ListToolsResult
	if err := c.do(ctx, mcp.MethodListTools, map[string]any{}, &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool invokes the tool with the arguments.
// A failure reported by the server is returned as *mcp.Error.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) ([]*mcp.Content, error) {
	var args json.RawMessage
	switch v := arguments.(type) {
	case nil:
	case json.RawMessage:
		args = v
	case []byte:
		args = v
	default:
		js, err := json.Marshal(arguments)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal arguments")
		}
		args = js
	}

	var content []*mcp.Content
	err := c.do(ctx, mcp.MethodCallTool, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	}, &content)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (c *Client) do(ctx context.Context, method mcp.Method, params, result any) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	return resp.Decode(result)
}
