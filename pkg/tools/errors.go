package tools

import "fmt"

// ConnectionError reports a failed tool-host handshake. It is fatal to
// the caller's turn.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to MCP server: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ToolError reports a single failed tool invocation. It carries the tool
// name so the orchestrator can narrate the failure back to the model.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
