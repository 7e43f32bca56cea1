package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ragmcp/ragmcp/internal/httpclient"
	"github.com/ragmcp/ragmcp/pkg/config"
)

// AnthropicProvider implements Provider over the Anthropic Messages API.
type AnthropicProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     *map[string]any `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicProvider creates a provider from configuration. The
// configuration must carry an API key; the handle is usable immediately,
// no separate connect step is needed for a stateless HTTP API.
func NewAnthropicProvider(cfg *config.LLMConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Anthropic")
	}

	if cfg.Host == "" {
		cfg.Host = "https://api.anthropic.com"
	}

	return &AnthropicProvider{
		config: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}, nil
}

func (p *AnthropicProvider) ModelID() string {
	return p.config.Model
}

func (p *AnthropicProvider) Close() error {
	return nil
}

// Converse sends one conversation request. Failures are fatal to the
// caller's turn; there is no application-level retry beyond the transport
// client's rate-limit handling.
func (p *AnthropicProvider) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	request, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s", response.Error.Message)
	}

	output := Message{Role: RoleAssistant}
	for _, content := range response.Content {
		switch content.Type {
		case "text":
			output.Content = append(output.Content, ContentBlock{
				Type: BlockTypeText,
				Text: content.Text,
			})
		case "tool_use":
			var input map[string]any
			if content.Input != nil {
				input = *content.Input
			}
			output.Content = append(output.Content, ContentBlock{
				Type: BlockTypeToolUse,
				ToolUse: &ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: input,
				},
			})
		}
	}

	usage := Usage{
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		TotalTokens:  response.Usage.InputTokens + response.Usage.OutputTokens,
	}

	return &ConverseResponse{
		Output:     output,
		StopReason: StopReason(response.StopReason),
		Usage:      usage,
	}, nil
}

func (p *AnthropicProvider) buildRequest(req *ConverseRequest) (anthropicRequest, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		contents := make([]anthropicContent, 0, len(msg.Content))

		for _, block := range msg.Content {
			switch block.Type {
			case BlockTypeText:
				contents = append(contents, anthropicContent{
					Type: "text",
					Text: block.Text,
				})

			case BlockTypeToolUse:
				input := block.ToolUse.Input
				if input == nil {
					input = make(map[string]any)
				}
				contents = append(contents, anthropicContent{
					Type:  "tool_use",
					ID:    block.ToolUse.ID,
					Name:  block.ToolUse.Name,
					Input: &input,
				})

			case BlockTypeToolResult:
				text := block.ToolResult.Text
				if block.ToolResult.JSON != nil {
					data, err := json.Marshal(block.ToolResult.JSON)
					if err != nil {
						return anthropicRequest{}, fmt.Errorf("failed to encode tool result for %s: %w", block.ToolResult.ToolUseID, err)
					}
					text = string(data)
				}
				contents = append(contents, anthropicContent{
					Type:      "tool_result",
					ToolUseID: block.ToolResult.ToolUseID,
					Content:   text,
					IsError:   block.ToolResult.Status == ToolResultError,
				})

			default:
				return anthropicRequest{}, fmt.Errorf("unknown content block type %q", block.Type)
			}
		}

		messages = append(messages, anthropicMessage{
			Role:    string(msg.Role),
			Content: contents,
		})
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = p.config.Model
	}

	maxTokens := req.Inference.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	temperature := req.Inference.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}

	request := anthropicRequest{
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	if req.ToolConfig != nil && len(req.ToolConfig.Tools) > 0 {
		tools := make([]anthropicTool, len(req.ToolConfig.Tools))
		for i, entry := range req.ToolConfig.Tools {
			tools[i] = anthropicTool{
				Name:        entry.ToolSpec.Name,
				Description: entry.ToolSpec.Description,
				InputSchema: entry.ToolSpec.InputSchema.JSON,
			}
		}
		request.Tools = tools
	}

	return request, nil
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, request anthropicRequest) (*anthropicResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.Host+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		// The transport client hands back the response on non-2xx
		// statuses; pull the API's reason out of the error body.
		if resp == nil {
			return nil, fmt.Errorf("failed to make request: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if msg := apiErrorMessage(body); msg != "" {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, _ := io.ReadAll(resp.Body)

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// apiErrorMessage extracts error.message from an API error body, or "".
func apiErrorMessage(body []byte) string {
	var response struct {
		Error *anthropicError `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err == nil && response.Error != nil {
		return response.Error.Message
	}
	return ""
}

var _ Provider = (*AnthropicProvider)(nil)
