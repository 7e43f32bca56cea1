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

// Package chat runs the tool-augmented conversation loop: pick a tool set
// for the turn, converse with the model, execute requested tools, feed the
// results back, and stop when the model stops asking for tools or the
// round limit is hit.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/llms"
	"github.com/ragmcp/ragmcp/pkg/retrieval"
	"github.com/ragmcp/ragmcp/pkg/session"
	"github.com/ragmcp/ragmcp/pkg/tools"
)

// ToolCaller is the tool-execution surface the manager needs.
type ToolCaller interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]tools.Descriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
	Close()
}

// ToolStore is the knowledge-base surface the manager needs.
type ToolStore interface {
	ReplaceCorpus(ctx context.Context, entries []llms.ToolEntry) (*retrieval.Job, error)
	Query(ctx context.Context, text string, topK int) (*llms.ToolConfig, error)
	QueryAll(ctx context.Context) (*llms.ToolConfig, error)
}

// Result summarizes one processed turn.
type Result struct {
	Text             string
	Usage            llms.Usage
	StopReason       llms.StopReason
	ToolRounds       int
	MaxRoundsReached bool
}

// Manager owns one conversation session. It is not safe for concurrent
// use; one turn at a time.
type Manager struct {
	provider llms.Provider
	caller   ToolCaller
	store    ToolStore
	sess     *session.Session
	cfg      config.ChatConfig
}

func NewManager(provider llms.Provider, caller ToolCaller, store ToolStore, cfg config.ChatConfig) *Manager {
	return &Manager{
		provider: provider,
		caller:   caller,
		store:    store,
		sess:     session.New(),
		cfg:      cfg,
	}
}

// Initialize connects the tool client and optionally pushes the live tool
// catalog into the knowledge base before the first turn.
func (m *Manager) Initialize(ctx context.Context, syncTools bool) error {
	if err := m.caller.Connect(ctx); err != nil {
		return err
	}

	if syncTools {
		if err := m.SyncTools(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the tool client. Safe to call more than once.
func (m *Manager) Close() {
	m.caller.Close()
}

// SyncTools replaces the indexed corpus with the tool host's current
// catalog.
func (m *Manager) SyncTools(ctx context.Context) error {
	descriptors, err := m.caller.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools for sync: %w", err)
	}

	toolConfig := tools.ToolConfig(descriptors)
	job, err := m.store.ReplaceCorpus(ctx, toolConfig.Tools)
	if err != nil {
		return fmt.Errorf("failed to sync tools to knowledge base: %w", err)
	}

	slog.Info("Synced tools to knowledge base", "tools", len(toolConfig.Tools), "job_status", job.Status)
	return nil
}

// ProcessMessage runs one full turn. The tool set is chosen once, up
// front: the retrieval gateway over the accumulated user context, or the
// whole indexed catalog. The model is called at most MaxToolRounds+1
// times (a single round when auto tool calling is disabled); a failed
// tool becomes an error result the model sees, never a failed turn.
func (m *Manager) ProcessMessage(ctx context.Context, input string, useRetrieval bool) (*Result, error) {
	m.sess.AppendUser(input)

	toolConfig, err := m.selectTools(ctx, useRetrieval)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	maxRounds := m.maxRounds()

	for round := 0; round < maxRounds; round++ {
		resp, err := m.converse(ctx, toolConfig)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(resp.Usage)
		result.StopReason = resp.StopReason

		if text := resp.Output.Text(); text != "" {
			m.sess.AppendAssistant(text)
			result.Text = text
		}

		if resp.StopReason != llms.StopReasonToolUse {
			result.ToolRounds = round
			return result, nil
		}

		m.executeToolUses(ctx, resp.Output.ToolUses())
	}

	// Round limit hit: one last call, tool config still attached so the
	// model can reference the pending results, then we stop regardless.
	resp, err := m.converse(ctx, toolConfig)
	if err != nil {
		return nil, err
	}
	result.Usage.Add(resp.Usage)
	result.StopReason = resp.StopReason
	result.ToolRounds = maxRounds
	result.MaxRoundsReached = true

	if text := resp.Output.Text(); text != "" {
		m.sess.AppendAssistant(text)
		result.Text = text
	}

	slog.Warn("Tool round limit reached", "max_rounds", maxRounds)
	return result, nil
}

// maxRounds caps the turn at a single tool round when auto tool calling
// is disabled; the tool set stays attached either way.
func (m *Manager) maxRounds() int {
	if m.cfg.AutoToolCalling != nil && !*m.cfg.AutoToolCalling {
		return 1
	}
	return m.cfg.MaxToolRounds
}

// History returns the session's message log.
func (m *Manager) History() []llms.Message {
	return m.sess.Messages()
}

// MessageCount returns the number of messages in the session.
func (m *Manager) MessageCount() int {
	return m.sess.Len()
}

// ClearHistory discards the conversation so far.
func (m *Manager) ClearHistory() {
	m.sess.Clear()
}

// IndexedTools returns everything currently in the knowledge base.
func (m *Manager) IndexedTools(ctx context.Context) (*llms.ToolConfig, error) {
	return m.store.QueryAll(ctx)
}

func (m *Manager) selectTools(ctx context.Context, useRetrieval bool) (*llms.ToolConfig, error) {
	var toolConfig *llms.ToolConfig
	var err error
	if useRetrieval {
		toolConfig, err = m.store.Query(ctx, m.sess.Context(), m.cfg.TopK)
	} else {
		toolConfig, err = m.store.QueryAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select tools: %w", err)
	}

	if len(toolConfig.Tools) == 0 {
		slog.Debug("No tools selected for turn")
		return nil, nil
	}

	slog.Debug("Selected tools for turn", "count", len(toolConfig.Tools), "retrieval", useRetrieval)
	return toolConfig, nil
}

func (m *Manager) converse(ctx context.Context, toolConfig *llms.ToolConfig) (*llms.ConverseResponse, error) {
	resp, err := m.provider.Converse(ctx, &llms.ConverseRequest{
		ModelID:    m.provider.ModelID(),
		Messages:   m.sess.Messages(),
		ToolConfig: toolConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation request failed: %w", err)
	}
	return resp, nil
}

// executeToolUses runs every tool the model asked for in this round and
// appends one result per use. Failures and empty outputs go back to the
// model as error results.
func (m *Manager) executeToolUses(ctx context.Context, uses []*llms.ToolUseBlock) {
	for _, use := range uses {
		m.sess.AppendToolUse(*use)

		output, err := m.caller.CallTool(ctx, use.Name, use.Input)
		if err != nil {
			slog.Warn("Tool call failed", "tool", use.Name, "error", err)
			m.sess.AppendToolResult(use.ID, err.Error(), llms.ToolResultError)
			continue
		}

		if output == "" {
			m.sess.AppendToolResult(use.ID, fmt.Sprintf("tool %s didn't return text content", use.Name), llms.ToolResultError)
			continue
		}

		m.sess.AppendToolResult(use.ID, parseToolOutput(output), llms.ToolResultSuccess)
	}
}

// parseToolOutput upgrades JSON object/array output to structured content
// so the session can encode it as a JSON block.
func parseToolOutput(output string) any {
	var value any
	if err := json.Unmarshal([]byte(output), &value); err == nil {
		switch value.(type) {
		case map[string]any, []any:
			return value
		}
	}
	return output
}
