package mcp

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -source=tool.go -destination=../mocks/mockmcp/tool_mock.gen.go -package mockmcp

// Tool is a named unit of functionality exposed to clients.
// Implementations must be safe for concurrent use,
// as several calls of the same tool may run at the same time.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string
	// Description returns the human readable description of the tool.
	Description() string
	// InputSchema returns the JSON schema of the accepted arguments.
	// The schema is informational, the dispatcher does not enforce it.
	InputSchema() any
	// Call executes the tool with the raw arguments from the request.
	Call(ctx context.Context, arguments json.RawMessage) ([]*Content, error)
}

// ToolInfo is the summary of a tool returned by listTools
type ToolInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	InputSchema any    `json:"inputSchema" yaml:"inputSchema"`
}
