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

// Package config holds the process configuration. The configuration is
// constructed once at startup (file + environment), validated once, and
// passed by reference into each component constructor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// LLM configures the hosted conversation API.
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// MCP configures the tool-host process.
	MCP MCPConfig `yaml:"mcp" json:"mcp"`

	// KnowledgeBase configures the tool corpus index.
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base" json:"knowledge_base"`

	// ObjectStore configures corpus storage.
	ObjectStore ObjectStoreConfig `yaml:"object_store" json:"object_store"`

	// Vector configures the vector database backing retrieval.
	Vector VectorConfig `yaml:"vector" json:"vector"`

	// Embedder configures the embedding provider used during ingestion
	// and retrieval.
	Embedder EmbedderConfig `yaml:"embedder" json:"embedder"`

	// Chat configures the conversation orchestrator.
	Chat ChatConfig `yaml:"chat" json:"chat"`

	// Logger configures logging.
	Logger LoggerConfig `yaml:"logger" json:"logger"`
}

// ChatConfig configures the orchestrator loop.
type ChatConfig struct {
	// MaxToolRounds bounds the number of tool-calling rounds per turn.
	MaxToolRounds int `yaml:"max_tool_rounds,omitempty" json:"max_tool_rounds,omitempty" jsonschema:"title=Max Tool Rounds,minimum=1,default=5"`

	// AutoToolCalling enables multi-round tool calling. When disabled a
	// turn performs at most one tool round.
	AutoToolCalling *bool `yaml:"auto_tool_calling,omitempty" json:"auto_tool_calling,omitempty" jsonschema:"title=Auto Tool Calling,default=true"`

	// TopK is the number of tools retrieved from the knowledge base per
	// turn when retrieval-based tool selection is active.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,minimum=1,default=2"`

	// UseRetrieval selects retrieval-based tool selection instead of the
	// full indexed catalog.
	UseRetrieval *bool `yaml:"use_retrieval,omitempty" json:"use_retrieval,omitempty" jsonschema:"title=Use Retrieval,default=true"`
}

// LoggerConfig configures logging output.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File,description=Log file path (empty = stderr)"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,enum=simple,enum=verbose,default=simple"`
}

func (c *ChatConfig) SetDefaults() {
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = envInt("CHAT_MAX_TOOL_ROUNDS", 5)
	}
	if c.AutoToolCalling == nil {
		v := envBool("CHAT_ENABLE_AUTO_TOOLS", true)
		c.AutoToolCalling = &v
	}
	if c.TopK == 0 {
		c.TopK = envInt("CHAT_TOP_K", 2)
	}
	if c.UseRetrieval == nil {
		v := envBool("CHAT_USE_RETRIEVAL", true)
		c.UseRetrieval = &v
	}
}

func (c *ChatConfig) Validate() error {
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("chat: max_tool_rounds must be at least 1, got %d", c.MaxToolRounds)
	}
	if c.TopK < 1 {
		return fmt.Errorf("chat: top_k must be at least 1, got %d", c.TopK)
	}
	return nil
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.MCP.SetDefaults()
	c.KnowledgeBase.SetDefaults()
	c.ObjectStore.SetDefaults()
	c.Vector.SetDefaults()
	c.Embedder.SetDefaults()
	c.Chat.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks every section. Validation happens once, at
// construction, not on field access.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.MCP.Validate(); err != nil {
		return err
	}
	if err := c.KnowledgeBase.Validate(); err != nil {
		return err
	}
	if err := c.ObjectStore.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	return c.Chat.Validate()
}

// Process runs the full defaulting + validation pipeline.
func Process(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads a YAML config file, expands ${VAR} references, and runs the
// processing pipeline. An empty path yields an environment-only config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return Process(cfg)
}
