// Package providers contains the LLM backend adapters. Each adapter
// translates between the runtime's normalized messages and one vendor API,
// so the loop and the security pipeline never see wire formats.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/observability"
)

const defaultAnthropicMaxTokens = 8096

// AnthropicProvider adapts the Anthropic Messages API.
type AnthropicProvider struct {
	client  anthropic.Client
	metrics *observability.Metrics
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// APIKey authenticates with the Anthropic API. Falls back to the
	// ANTHROPIC_API_KEY environment variable when empty.
	APIKey string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewAnthropicProvider creates the provider.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required (set ANTHROPIC_API_KEY)")
	}

	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:  anthropic.NewClient(options...),
		metrics: config.Metrics,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// CreateMessage sends one conversation turn and returns the normalized
// response.
func (p *AnthropicProvider) CreateMessage(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	tools, err := convertAnthropicTools(req.Tools)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	p.observe(req.Model, start, err)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var content []agent.ContentBlock
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content = append(content, agent.TextBlock{Text: block.Text})
		case "tool_use":
			var input map[string]any
			if err := json.Unmarshal(block.Input, &input); err != nil {
				return nil, fmt.Errorf("anthropic: invalid tool_use input for %s: %w", block.Name, err)
			}
			content = append(content, agent.ToolUseBlock{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	stopReason := agent.StopEndTurn
	if string(msg.StopReason) == "tool_use" {
		stopReason = agent.StopToolUse
	}

	return &agent.Response{StopReason: stopReason, Content: content}, nil
}

func (p *AnthropicProvider) observe(model string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.LLMRequestDuration.WithLabelValues("anthropic", model).Observe(time.Since(start).Seconds())
	p.metrics.LLMRequestCounter.WithLabelValues("anthropic", model, status).Inc()
}

// convertAnthropicMessages translates normalized messages to the wire form.
func convertAnthropicMessages(messages []agent.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		for _, block := range msg.Content {
			switch b := block.(type) {
			case agent.TextBlock:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case agent.ToolUseBlock:
				content = append(content, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
			case agent.ToolResultBlock:
				content = append(content, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, false))
			default:
				return nil, fmt.Errorf("anthropic: unsupported content block %q", block.BlockType())
			}
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

// convertAnthropicTools translates tool schemas to the wire form.
func convertAnthropicTools(tools []agent.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam

	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)

		result = append(result, toolParam)
	}

	return result, nil
}
