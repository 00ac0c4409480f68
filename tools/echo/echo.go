// Package echo provides a diagnostic tool that returns its input.
package echo

import (
	"context"

	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/tools"
)

// ToolName is the name of the echo tool
const ToolName = "echo"

// Request is the input of the echo tool
type Request struct {
	Text string `json:"text" validate:"required" jsonschema:"description=Text to return"`
}

// New returns the echo tool
func New() (*tools.Tool[Request], error) {
	return tools.New(ToolName, "Returns the provided text, for connectivity checks.", Run)
}

// Run returns the request text as a single text content
func Run(_ context.Context, req *Request) ([]*mcp.Content, error) {
	return []*mcp.Content{mcp.NewTextContent(req.Text)}, nil
}
