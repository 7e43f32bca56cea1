package config

import (
	"fmt"
	"strings"
)

// MCPConfig configures the tool-host process reached over MCP stdio.
type MCPConfig struct {
	// Command spawns the tool-host process.
	Command string `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command,description=Tool host command,default=npx"`

	// Args for the tool-host command.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Args,description=Tool host arguments"`

	// Env passed to the tool-host process.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Env,description=Tool host environment"`

	// DisconnectTimeout bounds teardown, in seconds.
	DisconnectTimeout int `yaml:"disconnect_timeout,omitempty" json:"disconnect_timeout,omitempty" jsonschema:"title=Disconnect Timeout,default=5"`
}

func (c *MCPConfig) SetDefaults() {
	if c.Command == "" {
		c.Command = envString("MCP_COMMAND", "npx")
	}
	if len(c.Args) == 0 {
		if args := envString("MCP_ARGS", ""); args != "" {
			for _, arg := range strings.Split(args, ",") {
				c.Args = append(c.Args, strings.TrimSpace(arg))
			}
		}
	}
	if c.Env == nil {
		c.Env = map[string]string{}
	}
	if c.DisconnectTimeout == 0 {
		c.DisconnectTimeout = 5
	}
}

func (c *MCPConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("mcp: command is required")
	}
	return nil
}
