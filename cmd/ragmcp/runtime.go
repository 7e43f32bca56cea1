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

package main

import (
	"fmt"
	"log/slog"

	"github.com/ragmcp/ragmcp/pkg/chat"
	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/embedders"
	"github.com/ragmcp/ragmcp/pkg/kb"
	"github.com/ragmcp/ragmcp/pkg/llms"
	"github.com/ragmcp/ragmcp/pkg/objstore"
	"github.com/ragmcp/ragmcp/pkg/retrieval"
	"github.com/ragmcp/ragmcp/pkg/tools"
	"github.com/ragmcp/ragmcp/pkg/vector"
)

// runtime wires the configured collaborators together for one command.
type runtime struct {
	cfg      *config.Config
	provider llms.Provider
	caller   *tools.Client
	vectors  vector.Provider
	index    *kb.ToolIndex
	manager  *chat.Manager
}

// newRuntime builds every collaborator from the loaded config. Nothing is
// connected yet; the MCP handshake happens in Manager.Initialize.
func newRuntime(cfg *config.Config) (*runtime, error) {
	provider, err := llms.NewAnthropicProvider(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	caller, err := tools.New(cfg.MCP)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	store, err := objstore.New(cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	vectors, err := vector.NewQdrantProvider(cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}

	embedder := embedders.NewOllamaEmbedder(cfg.Embedder)

	service := retrieval.NewLocalService(store, embedder, vectors,
		cfg.KnowledgeBase.Collection, cfg.KnowledgeBase.Prefix)

	index := kb.NewToolIndex(store, service, cfg.KnowledgeBase)

	return &runtime{
		cfg:      cfg,
		provider: provider,
		caller:   caller,
		vectors:  vectors,
		index:    index,
		manager:  chat.NewManager(provider, caller, index, cfg.Chat),
	}, nil
}

// Close tears everything down in reverse construction order.
func (r *runtime) Close() {
	r.manager.Close()
	if err := r.vectors.Close(); err != nil {
		slog.Warn("Error closing vector provider", "error", err)
	}
	if err := r.provider.Close(); err != nil {
		slog.Warn("Error closing LLM provider", "error", err)
	}
}

func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.Config != "" {
		slog.Info("Loaded configuration", "path", cli.Config)
	}
	return cfg, nil
}
