package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmcp/ragmcp/pkg/config"
)

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(config.MCPConfig{})
	require.Error(t, err)

	client, err := New(config.MCPConfig{Command: "npx"})
	require.NoError(t, err)
	assert.False(t, client.Connected())
}

func TestUseBeforeConnect(t *testing.T) {
	client, err := New(config.MCPConfig{Command: "npx"})
	require.NoError(t, err)

	_, err = client.ListTools(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)

	_, err = client.CallTool(context.Background(), "anything", nil)
	require.ErrorAs(t, err, &connErr)
}

func TestCloseOnDisconnectedClientIsSafe(t *testing.T) {
	client, err := New(config.MCPConfig{Command: "npx"})
	require.NoError(t, err)

	client.Close()
	client.Close()
	assert.False(t, client.Connected())
}

func TestToolConfigWireFormat(t *testing.T) {
	descriptors := []Descriptor{
		{
			Name:        "get_weather",
			Description: "Get the current weather",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{"type": "string"},
				},
			},
		},
		{Name: "get_time", Description: "Get the current time"},
	}

	toolConfig := ToolConfig(descriptors)
	require.Len(t, toolConfig.Tools, 2)

	data, err := json.Marshal(toolConfig)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	tools, ok := decoded["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 2)

	first, ok := tools[0].(map[string]any)
	require.True(t, ok)
	spec, ok := first["toolSpec"].(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "get_weather", spec["name"])
	assert.Equal(t, "Get the current weather", spec["description"])

	inputSchema, ok := spec["inputSchema"].(map[string]any)
	require.True(t, ok)
	schema, ok := inputSchema["json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
}

func TestToolErrorCarriesToolName(t *testing.T) {
	err := &ToolError{Tool: "get_weather", Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "get_weather")
	assert.Contains(t, err.Error(), "boom")
	assert.EqualError(t, errors.Unwrap(err), "boom")
}

func TestConnectionErrorUnwraps(t *testing.T) {
	inner := errors.New("spawn failed")
	err := &ConnectionError{Err: inner}
	assert.ErrorIs(t, err, inner)
}
