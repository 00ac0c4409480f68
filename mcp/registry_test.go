package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcTool is a tool backed by a function
type funcTool struct {
	name        string
	description string
	schema      any
	call        func(ctx context.Context, args json.RawMessage) ([]*mcp.Content, error)
}

func (f *funcTool) Name() string        { return f.name }
func (f *funcTool) Description() string { return f.description }
func (f *funcTool) InputSchema() any    { return f.schema }

func (f *funcTool) Call(ctx context.Context, args json.RawMessage) ([]*mcp.Content, error) {
	if f.call == nil {
		return []*mcp.Content{mcp.NewTextContent(f.name)}, nil
	}
	return f.call(ctx, args)
}

func newFuncTool(name string) *funcTool {
	return &funcTool{
		name:        name,
		description: "tool " + name,
		schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func TestRegistry_List(t *testing.T) {
	faker := gofakeit.New(42)

	for run := 0; run < 5; run++ {
		count := faker.IntRange(1, 20)

		reg := mcp.NewRegistry()
		var expected []mcp.ToolInfo
		for i := 0; i < count; i++ {
			tool := newFuncTool(fmt.Sprintf("%s-%d", faker.Word(), i))
			tool.description = faker.Word() + " " + faker.Word()
			require.NoError(t, reg.Register(tool))
			expected = append(expected, mcp.ToolInfo{
				Name:        tool.name,
				Description: tool.description,
				InputSchema: tool.schema,
			})
		}

		assert.Equal(t, count, reg.Len())
		if diff := cmp.Diff(expected, reg.List()); diff != "" {
			t.Fatalf("unexpected list (-want +got):\n%s", diff)
		}

		names := reg.Names()
		require.Len(t, names, count)
		for i, info := range expected {
			assert.Equal(t, info.Name, names[i])
		}
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := mcp.NewRegistry()
	first := newFuncTool("echo")
	second := newFuncTool("echo")
	second.description = "second"

	require.NoError(t, reg.Register(first))
	err := reg.Register(second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrDuplicateToolName))
	assert.EqualError(t, err, "duplicate tool name: echo")

	assert.Equal(t, 1, reg.Len())
	tool, err := reg.Lookup("echo")
	require.NoError(t, err)
	assert.Same(t, first, tool)
}

func TestRegistry_Lookup(t *testing.T) {
	reg := mcp.NewRegistry()
	require.NoError(t, reg.Register(newFuncTool("a")))

	tool, err := reg.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "a", tool.Name())

	_, err = reg.Lookup("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcp.ErrToolNotFound))
	assert.EqualError(t, err, "unknown tool: b")
}

func TestRegistry_Invalid(t *testing.T) {
	reg := mcp.NewRegistry()
	assert.EqualError(t, reg.Register(nil), "invalid tool: nil")
	assert.EqualError(t, reg.Register(newFuncTool("")), "invalid tool: empty name")
	assert.Empty(t, reg.List())
	assert.NotNil(t, reg.List())
}
