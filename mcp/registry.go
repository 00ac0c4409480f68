package mcp

import (
	"github.com/cockroachdb/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry holds the registered tools, keyed by unique name,
// in registration order.
//
// Registry is populated at build time and is read-only afterwards,
// Register must not be called concurrently with other methods.
type Registry struct {
	tools *orderedmap.OrderedMap[string, Tool]
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools: orderedmap.New[string, Tool](),
	}
}

// Register adds the tool.
// Returns ErrDuplicateToolName if the name is already registered,
// in which case the first registration is retained.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("invalid tool: nil")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("invalid tool: empty name")
	}
	if _, exists := r.tools.Get(name); exists {
		return markf(ErrDuplicateToolName, "duplicate tool name: %s", name)
	}
	r.tools.Set(name, tool)
	return nil
}

// Lookup returns the tool by name, or ErrToolNotFound
func (r *Registry) Lookup(name string) (Tool, error) {
	tool, ok := r.tools.Get(name)
	if !ok {
		return nil, markf(ErrToolNotFound, "unknown tool: %s", name)
	}
	return tool, nil
}

// List returns summaries of the tools in registration order
func (r *Registry) List() []ToolInfo {
	list := make([]ToolInfo, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		tool := pair.Value
		list = append(list, ToolInfo{
			Name:        pair.Key,
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return list
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return r.tools.Len()
}
