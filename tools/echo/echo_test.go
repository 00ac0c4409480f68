package echo_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/effective-security/mcpbus/tools/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	tool, err := echo.New()
	require.NoError(t, err)
	assert.Equal(t, echo.ToolName, tool.Name())
	assert.NotEmpty(t, tool.Description())

	content, err := tool.Call(context.Background(), json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)

	js, err := json.Marshal(content)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"hi"}]`, string(js))

	_, err = tool.Call(context.Background(), json.RawMessage(`{}`))
	assert.EqualError(t, err, "invalid input: text is required")
}
