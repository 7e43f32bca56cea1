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

// Package session holds the append-only conversation log for one turn
// sequence. A Session is owned by exactly one orchestrator at a time and
// is not safe for concurrent use.
package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ragmcp/ragmcp/pkg/llms"
)

// Session is the ordered conversation history sent to the LLM. Messages
// are only ever appended; Clear is the single way to discard history.
type Session struct {
	messages   []llms.Message
	userInputs []string
}

// New creates an empty session.
func New() *Session {
	return &Session{}
}

// AppendUser appends a user text message.
func (s *Session) AppendUser(text string) {
	s.messages = append(s.messages, llms.NewTextMessage(llms.RoleUser, text))
	s.userInputs = append(s.userInputs, "user: "+text)
	slog.Debug("Appended user message", "length", len(text))
}

// AppendAssistant appends an assistant text message.
func (s *Session) AppendAssistant(text string) {
	s.messages = append(s.messages, llms.NewTextMessage(llms.RoleAssistant, text))
	slog.Debug("Appended assistant message", "length", len(text))
}

// AppendToolUse appends an assistant message wrapping a single tool
// invocation request.
func (s *Session) AppendToolUse(toolUse llms.ToolUseBlock) {
	s.messages = append(s.messages, llms.Message{
		Role: llms.RoleAssistant,
		Content: []llms.ContentBlock{{
			Type:    llms.BlockTypeToolUse,
			ToolUse: &toolUse,
		}},
	})
	slog.Debug("Appended tool use", "tool", toolUse.Name, "tool_use_id", toolUse.ID)
}

// AppendToolResult appends a user message carrying one tool result.
// Successful map/slice content is encoded as structured JSON; everything
// else, including error messages, is stringified to text.
func (s *Session) AppendToolResult(toolUseID string, content any, status llms.ToolResultStatus) {
	result := llms.ToolResultBlock{
		ToolUseID: toolUseID,
		Status:    status,
	}

	if status == llms.ToolResultSuccess && isStructured(content) {
		result.JSON = content
	} else {
		result.Text = stringify(content)
	}

	s.messages = append(s.messages, llms.Message{
		Role: llms.RoleUser,
		Content: []llms.ContentBlock{{
			Type:       llms.BlockTypeToolResult,
			ToolResult: &result,
		}},
	})
	slog.Debug("Appended tool result", "tool_use_id", toolUseID, "status", status)
}

// Messages returns the full ordered log.
func (s *Session) Messages() []llms.Message {
	return s.messages
}

// Context returns all prior user inputs joined into one string, used as
// the retrieval query for tool selection.
func (s *Session) Context() string {
	return strings.Join(s.userInputs, "\n")
}

// Len returns the number of messages.
func (s *Session) Len() int {
	return len(s.messages)
}

// LastAssistantText returns the most recent assistant text, or "".
func (s *Session) LastAssistantText() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == llms.RoleAssistant {
			if text := s.messages[i].Text(); text != "" {
				return text
			}
		}
	}
	return ""
}

// Clear truncates the session to empty.
func (s *Session) Clear() {
	s.messages = nil
	s.userInputs = nil
	slog.Info("Cleared conversation history")
}

func isStructured(content any) bool {
	switch content.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func stringify(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", content)
}
