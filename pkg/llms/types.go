package llms

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the content block variants.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged union over the block variants. Exactly one of
// Text, ToolUse, ToolResult is meaningful, selected by Type.
type ContentBlock struct {
	Type       BlockType
	Text       string
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
}

// ToolUseBlock is the model's request to invoke a tool.
type ToolUseBlock struct {
	ID    string         `json:"toolUseId"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultStatus marks a tool result as success or error.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ToolResultBlock carries one tool invocation's outcome back to the model.
// Structured results are kept as JSON (the model reasons over them more
// reliably when marked as such); everything else, including error
// messages, is plain text.
type ToolResultBlock struct {
	ToolUseID string
	JSON      any
	Text      string
	Status    ToolResultStatus
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// NewTextMessage builds a single-text-block message.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: BlockTypeText, Text: text}},
	}
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			out += block.Text
		}
	}
	return out
}

// ToolUses returns the tool-use blocks of the message in order.
func (m Message) ToolUses() []*ToolUseBlock {
	var uses []*ToolUseBlock
	for _, block := range m.Content {
		if block.Type == BlockTypeToolUse && block.ToolUse != nil {
			uses = append(uses, block.ToolUse)
		}
	}
	return uses
}

// ToolConfig is the tool set passed to the conversation API. The JSON
// shape is the wire format the hosted API and the knowledge-base corpus
// both use: {"tools": [{"toolSpec": {...}}, ...]}.
type ToolConfig struct {
	Tools []ToolEntry `json:"tools"`
}

// ToolEntry wraps a single tool spec.
type ToolEntry struct {
	ToolSpec ToolSpec `json:"toolSpec"`
}

// ToolSpec describes one callable tool.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema holds the tool's JSON Schema under the "json" key.
type InputSchema struct {
	JSON map[string]any `json:"json"`
}

// StopReason reports why the model stopped generating.
type StopReason string

const (
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// InferenceConfig bounds a single generation.
type InferenceConfig struct {
	MaxTokens   int
	Temperature float64
}

// ConverseRequest is one call to the hosted conversation API.
type ConverseRequest struct {
	ModelID    string
	Messages   []Message
	Inference  InferenceConfig
	ToolConfig *ToolConfig
}

// Usage counts tokens consumed by one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ConverseResponse is the hosted API's reply.
type ConverseResponse struct {
	Output     Message
	StopReason StopReason
	Usage      Usage
}

// Provider is a hosted LLM conversation API.
type Provider interface {
	Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error)
	ModelID() string
	Close() error
}
