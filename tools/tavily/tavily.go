package tavily

import (
	"github.com/effective-security/mcpbus/mcp"
)

// New returns the search and extract tools sharing one client
func New(cfg Config) ([]mcp.Tool, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client.Tools()
}

// Tools returns the search and extract tools backed by the client
func (c *Client) Tools() ([]mcp.Tool, error) {
	search, err := NewSearch(c)
	if err != nil {
		return nil, err
	}
	extract, err := NewExtract(c)
	if err != nil {
		return nil, err
	}
	return []mcp.Tool{search, extract}, nil
}
