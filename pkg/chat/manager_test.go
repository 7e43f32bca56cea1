package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/llms"
	"github.com/ragmcp/ragmcp/pkg/retrieval"
	"github.com/ragmcp/ragmcp/pkg/tools"
)

type fakeLLM struct {
	responses   []*llms.ConverseResponse
	toolConfigs []*llms.ToolConfig
	calls       int
	err         error
}

func (f *fakeLLM) Converse(ctx context.Context, req *llms.ConverseRequest) (*llms.ConverseResponse, error) {
	f.toolConfigs = append(f.toolConfigs, req.ToolConfig)
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

func (f *fakeLLM) ModelID() string { return "fake-model" }
func (f *fakeLLM) Close() error    { return nil }

type fakeCaller struct {
	descriptors []tools.Descriptor
	output      string
	callErr     error
	listErr     error
	calls       []string
	connected   bool
	closed      bool
}

func (f *fakeCaller) Connect(ctx context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeCaller) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.descriptors, nil
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return "", f.callErr
	}
	return f.output, nil
}

func (f *fakeCaller) Close() { f.closed = true }

type fakeStore struct {
	toolConfig  *llms.ToolConfig
	replaced    []llms.ToolEntry
	queryCalled bool
	queryText   string
	queryTopK   int
	queryAllled bool
	replaceErr  error
	retrieveErr error
}

func (f *fakeStore) ReplaceCorpus(ctx context.Context, entries []llms.ToolEntry) (*retrieval.Job, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	f.replaced = entries
	return &retrieval.Job{ID: "job-1", Status: retrieval.JobComplete}, nil
}

func (f *fakeStore) Query(ctx context.Context, text string, topK int) (*llms.ToolConfig, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	f.queryCalled = true
	f.queryText = text
	f.queryTopK = topK
	return f.toolConfig, nil
}

func (f *fakeStore) QueryAll(ctx context.Context) (*llms.ToolConfig, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	f.queryAllled = true
	return f.toolConfig, nil
}

func textResponse(text string) *llms.ConverseResponse {
	return &llms.ConverseResponse{
		Output:     llms.NewTextMessage(llms.RoleAssistant, text),
		StopReason: llms.StopReasonEndTurn,
		Usage:      llms.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func toolUseResponse(id, name string) *llms.ConverseResponse {
	return &llms.ConverseResponse{
		Output: llms.Message{
			Role: llms.RoleAssistant,
			Content: []llms.ContentBlock{
				{Type: llms.BlockTypeText, Text: "working on it"},
				{Type: llms.BlockTypeToolUse, ToolUse: &llms.ToolUseBlock{
					ID:    id,
					Name:  name,
					Input: map[string]any{"city": "Berlin"},
				}},
			},
		},
		StopReason: llms.StopReasonToolUse,
		Usage:      llms.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func testToolConfig() *llms.ToolConfig {
	return &llms.ToolConfig{Tools: []llms.ToolEntry{
		{ToolSpec: llms.ToolSpec{Name: "get_weather", Description: "Get weather"}},
	}}
}

func testChatConfig(maxRounds int) config.ChatConfig {
	cfg := config.ChatConfig{MaxToolRounds: maxRounds, TopK: 2}
	auto := true
	cfg.AutoToolCalling = &auto
	return cfg
}

func countBlocks(messages []llms.Message) (toolUses, toolResults int) {
	for _, msg := range messages {
		for _, block := range msg.Content {
			switch block.Type {
			case llms.BlockTypeToolUse:
				toolUses++
			case llms.BlockTypeToolResult:
				toolResults++
			}
		}
	}
	return
}

func TestProcessMessageStopsWhenModelStops(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
		toolUseResponse("use-2", "get_weather"),
		toolUseResponse("use-3", "get_weather"),
		textResponse("the weather is sunny"),
	}}
	caller := &fakeCaller{output: "sunny, 21C"}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(5))
	result, err := m.ProcessMessage(context.Background(), "what's the weather?", true)
	require.NoError(t, err)

	assert.Equal(t, "the weather is sunny", result.Text)
	assert.Equal(t, 3, result.ToolRounds)
	assert.False(t, result.MaxRoundsReached)
	assert.Equal(t, llms.StopReasonEndTurn, result.StopReason)
	assert.Equal(t, 4, llm.calls)
	assert.Len(t, caller.calls, 3)

	uses, results := countBlocks(m.History())
	assert.Equal(t, 3, uses)
	assert.Equal(t, 3, results)
}

func TestProcessMessageRoundLimit(t *testing.T) {
	// The model never stops asking for tools; the loop must cap at
	// MaxToolRounds plus exactly one final call.
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
	}}
	caller := &fakeCaller{output: "sunny"}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(2))
	result, err := m.ProcessMessage(context.Background(), "weather?", true)
	require.NoError(t, err)

	assert.True(t, result.MaxRoundsReached)
	assert.Equal(t, 2, result.ToolRounds)
	assert.Equal(t, 3, llm.calls)
	assert.NotEmpty(t, result.Text)
}

func TestProcessMessageUsageAccumulates(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
		textResponse("done"),
	}}
	caller := &fakeCaller{output: "ok"}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(5))
	result, err := m.ProcessMessage(context.Background(), "hi", true)
	require.NoError(t, err)

	assert.Equal(t, 30, result.Usage.TotalTokens)
}

func TestProcessMessageToolFailureContinuesLoop(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
		textResponse("couldn't fetch the weather"),
	}}
	caller := &fakeCaller{callErr: fmt.Errorf("tool host exploded")}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(5))
	result, err := m.ProcessMessage(context.Background(), "weather?", true)
	require.NoError(t, err)
	assert.Equal(t, "couldn't fetch the weather", result.Text)

	var errorResult *llms.ToolResultBlock
	for _, msg := range m.History() {
		for _, block := range msg.Content {
			if block.Type == llms.BlockTypeToolResult {
				errorResult = block.ToolResult
			}
		}
	}
	require.NotNil(t, errorResult)
	assert.Equal(t, llms.ToolResultError, errorResult.Status)
	assert.Contains(t, errorResult.Text, "tool host exploded")
}

func TestProcessMessageEmptyToolOutputBecomesError(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
		textResponse("hm"),
	}}
	caller := &fakeCaller{output: ""}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(5))
	_, err := m.ProcessMessage(context.Background(), "weather?", true)
	require.NoError(t, err)

	var result *llms.ToolResultBlock
	for _, msg := range m.History() {
		for _, block := range msg.Content {
			if block.Type == llms.BlockTypeToolResult {
				result = block.ToolResult
			}
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, llms.ToolResultError, result.Status)
	assert.Contains(t, result.Text, "didn't return text content")
}

func TestProcessMessageStructuredToolOutput(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
		textResponse("done"),
	}}
	caller := &fakeCaller{output: `{"temperature": 21}`}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, caller, store, testChatConfig(5))
	_, err := m.ProcessMessage(context.Background(), "weather?", true)
	require.NoError(t, err)

	var result *llms.ToolResultBlock
	for _, msg := range m.History() {
		for _, block := range msg.Content {
			if block.Type == llms.BlockTypeToolResult {
				result = block.ToolResult
			}
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, llms.ToolResultSuccess, result.Status)
	assert.Equal(t, map[string]any{"temperature": float64(21)}, result.JSON)
}

func TestProcessMessageLLMErrorPropagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("api unavailable")}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, &fakeCaller{}, store, testChatConfig(5))
	_, err := m.ProcessMessage(context.Background(), "hi", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api unavailable")
}

func TestGatewayRetrievalPath(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{textResponse("hi")}}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, &fakeCaller{}, store, testChatConfig(5))
	_, err := m.ProcessMessage(context.Background(), "what's up", true)
	require.NoError(t, err)

	assert.True(t, store.queryCalled)
	assert.False(t, store.queryAllled)
	assert.Equal(t, "user: what's up", store.queryText)
	assert.Equal(t, 2, store.queryTopK)
}

func TestGatewayQueryAllPath(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.ConverseResponse{textResponse("hi")}}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(llm, &fakeCaller{}, store, testChatConfig(5))
	_, err := m.ProcessMessage(context.Background(), "hello", false)
	require.NoError(t, err)

	assert.True(t, store.queryAllled)
	assert.False(t, store.queryCalled)
}

func TestAutoToolCallingDisabledCapsAtOneRound(t *testing.T) {
	// The tool set stays attached; disabling auto tool calling only
	// limits the turn to one tool round plus the final call.
	llm := &fakeLLM{responses: []*llms.ConverseResponse{
		toolUseResponse("use-1", "get_weather"),
	}}
	caller := &fakeCaller{output: "sunny"}
	store := &fakeStore{toolConfig: testToolConfig()}

	cfg := testChatConfig(5)
	auto := false
	cfg.AutoToolCalling = &auto

	m := NewManager(llm, caller, store, cfg)
	result, err := m.ProcessMessage(context.Background(), "weather?", true)
	require.NoError(t, err)

	assert.True(t, store.queryCalled)
	assert.Equal(t, 1, result.ToolRounds)
	assert.True(t, result.MaxRoundsReached)
	assert.Equal(t, 2, llm.calls)
	assert.Len(t, caller.calls, 1)
	for _, toolConfig := range llm.toolConfigs {
		require.NotNil(t, toolConfig)
		assert.Len(t, toolConfig.Tools, 1)
	}
}

func TestSyncTools(t *testing.T) {
	caller := &fakeCaller{descriptors: []tools.Descriptor{
		{Name: "get_weather", Description: "Get weather", InputSchema: map[string]any{"type": "object"}},
		{Name: "get_time", Description: "Get time"},
	}}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(&fakeLLM{}, caller, store, testChatConfig(5))
	require.NoError(t, m.SyncTools(context.Background()))

	require.Len(t, store.replaced, 2)
	assert.Equal(t, "get_weather", store.replaced[0].ToolSpec.Name)
	assert.Equal(t, "get_time", store.replaced[1].ToolSpec.Name)
}

func TestInitializeConnectsAndOptionallySyncs(t *testing.T) {
	caller := &fakeCaller{descriptors: []tools.Descriptor{{Name: "t"}}}
	store := &fakeStore{toolConfig: testToolConfig()}

	m := NewManager(&fakeLLM{}, caller, store, testChatConfig(5))
	require.NoError(t, m.Initialize(context.Background(), true))

	assert.True(t, caller.connected)
	assert.Len(t, store.replaced, 1)

	m.Close()
	assert.True(t, caller.closed)
}
