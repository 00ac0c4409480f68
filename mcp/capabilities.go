package mcp

import (
	"encoding/json"
	"maps"
)

// Capability is a free-form capability object.
// A nil *Capability means the feature group is not supported.
type Capability map[string]any

// NewCapability returns an empty capability object, marking the feature as supported
func NewCapability() *Capability {
	return &Capability{}
}

// Capabilities describes the optional protocol features supported by the server.
// It is set once at build time and returned verbatim by initialize.
type Capabilities struct {
	Tools                    *Capability `json:"tools,omitempty" yaml:"tools,omitempty"`
	Prompts                  *Capability `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Resources                *Capability `json:"resources,omitempty" yaml:"resources,omitempty"`
	NotificationOptions      *Capability `json:"notification_options,omitempty" yaml:"notification_options,omitempty"`
	ExperimentalCapabilities *Capability `json:"experimental_capabilities,omitempty" yaml:"experimental_capabilities,omitempty"`
}

// DefaultCapabilities advertises tools, prompts and resources groups
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Tools:     NewCapability(),
		Prompts:   NewCapability(),
		Resources: NewCapability(),
	}
}

// Clone returns a deep copy of the top level capability objects
func (c Capabilities) Clone() Capabilities {
	return Capabilities{
		Tools:                    c.Tools.clone(),
		Prompts:                  c.Prompts.clone(),
		Resources:                c.Resources.clone(),
		NotificationOptions:      c.NotificationOptions.clone(),
		ExperimentalCapabilities: c.ExperimentalCapabilities.clone(),
	}
}

func (c *Capability) clone() *Capability {
	if c == nil {
		return nil
	}
	cp := maps.Clone(*c)
	if cp == nil {
		cp = Capability{}
	}
	return &cp
}

// Implementation describes the name and version of a server or client
type Implementation struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// InitializeParams is the params of initialize request
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion,omitempty"`
	ClientInfo      *Implementation `json:"clientInfo,omitempty"`
	Capabilities    map[string]any  `json:"capabilities,omitempty"`
}

// InitializeResult is the result of initialize request
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    Capabilities   `json:"capabilities"`
}

// ListToolsResult is the result of listTools request
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams is the params of callTool request
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
