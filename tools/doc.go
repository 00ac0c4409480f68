// Package tools provides the typed adapter for MCP tools: arguments are
// decoded into a Go struct, validated with `validate` tags, and the input
// schema is derived from the struct with `jsonschema` tags.
package tools
