// Copyright 2025 The ragmcp authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tools provides the MCP tool-execution client. The client spawns
// a tool-host process over stdio, lists the tools it exposes, and invokes
// them by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/llms"
)

const protocolVersion = "2024-11-05"

// Descriptor describes one tool the host exposes.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client is the tool-execution client. It is constructed disconnected;
// Connect must succeed before ListTools or CallTool are usable.
type Client struct {
	cfg       config.MCPConfig
	mcpClient *client.Client
	connected bool
}

// New creates a disconnected client.
func New(cfg config.MCPConfig) (*Client, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required for the MCP tool host")
	}
	return &Client{cfg: cfg}, nil
}

// Connected reports whether the handshake has completed.
func (c *Client) Connected() bool {
	return c.connected
}

// Connect spawns the tool-host process and performs the MCP initialize
// handshake. On any failure the partial connection is torn down and the
// client stays disconnected.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}

	mcpClient, err := client.NewStdioMCPClient(
		c.cfg.Command,
		convertEnv(c.cfg.Env),
		c.cfg.Args...,
	)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return &ConnectionError{Err: fmt.Errorf("failed to start MCP client: %w", err)}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "ragmcp",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = protocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return &ConnectionError{Err: fmt.Errorf("failed to initialize MCP session: %w", err)}
	}

	c.mcpClient = mcpClient
	c.connected = true

	slog.Info("Connected to MCP server",
		"command", c.cfg.Command,
		"args", strings.Join(c.cfg.Args, " "),
	)

	return nil
}

// ListTools returns all tools the host currently exposes.
func (c *Client) ListTools(ctx context.Context) ([]Descriptor, error) {
	if !c.connected {
		return nil, &ConnectionError{Err: fmt.Errorf("MCP session not initialized")}
	}

	listResp, err := c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(listResp.Tools))
	for _, tool := range listResp.Tools {
		descriptors = append(descriptors, Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: convertSchema(tool.InputSchema),
		})
	}

	slog.Info("Listed MCP tools", "count", len(descriptors))
	return descriptors, nil
}

// CallTool invokes one tool and returns the concatenated text content of
// its result. A host-reported error flag or any transport failure yields
// a *ToolError; the client never retries.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	if !c.connected {
		return "", &ConnectionError{Err: fmt.Errorf("MCP session not initialized")}
	}

	slog.Info("Calling tool", "tool", name)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	resp, err := c.mcpClient.CallTool(ctx, req)
	if err != nil {
		return "", &ToolError{Tool: name, Err: err}
	}

	text := extractText(resp.Content)

	if resp.IsError {
		msg := text
		if msg == "" {
			msg = "tool execution failed"
		}
		return "", &ToolError{Tool: name, Err: fmt.Errorf("%s", msg)}
	}

	return text, nil
}

// Close tears down the session and the tool-host process link. Teardown
// is best-effort with a bounded wait; failures are logged, never raised,
// so cleanup on error paths cannot mask the original failure.
func (c *Client) Close() {
	if c.mcpClient == nil {
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- c.mcpClient.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Warn("Error during MCP disconnect", "error", err)
		}
	case <-time.After(time.Duration(c.cfg.DisconnectTimeout) * time.Second):
		slog.Warn("MCP disconnect timed out", "timeout_seconds", c.cfg.DisconnectTimeout)
	}

	c.mcpClient = nil
	c.connected = false
	slog.Info("Disconnected from MCP server")
}

// ToolConfig flattens descriptors into the LLM tool-set wire format.
func ToolConfig(descriptors []Descriptor) *llms.ToolConfig {
	entries := make([]llms.ToolEntry, 0, len(descriptors))
	for _, d := range descriptors {
		entries = append(entries, llms.ToolEntry{
			ToolSpec: llms.ToolSpec{
				Name:        d.Name,
				Description: d.Description,
				InputSchema: llms.InputSchema{JSON: d.InputSchema},
			},
		})
	}
	return &llms.ToolConfig{Tools: entries}
}

func extractText(content []mcp.Content) string {
	var texts []string
	for _, block := range content {
		if textContent, ok := block.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertSchema round-trips the MCP schema through JSON to get a plain map.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

func convertEnv(env map[string]string) []string {
	if env == nil {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}
