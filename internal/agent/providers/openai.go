package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/observability"
)

// OpenAIProvider adapts the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client  *openai.Client
	metrics *observability.Metrics
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey authenticates with the OpenAI API. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewOpenAIProvider creates the provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (set OPENAI_API_KEY)")
	}

	var client *openai.Client
	if config.BaseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = config.BaseURL
		client = openai.NewClientWithConfig(cfg)
	} else {
		client = openai.NewClient(apiKey)
	}

	return &OpenAIProvider{client: client, metrics: config.Metrics}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// CreateMessage sends one conversation turn and returns the normalized
// response.
func (p *OpenAIProvider) CreateMessage(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	messages, err := convertOpenAIMessages(req.Messages, req.System)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    convertOpenAITools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	p.observe(req.Model, start, err)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contains no choices")
	}

	choice := resp.Choices[0]
	var content []agent.ContentBlock

	if choice.Message.Content != "" {
		content = append(content, agent.TextBlock{Text: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		var input map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("openai: invalid tool call arguments for %s: %w", call.Function.Name, err)
			}
		}
		content = append(content, agent.ToolUseBlock{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	stopReason := agent.StopEndTurn
	if choice.FinishReason == openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) > 0 {
		stopReason = agent.StopToolUse
	}

	return &agent.Response{StopReason: stopReason, Content: content}, nil
}

func (p *OpenAIProvider) observe(model string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.LLMRequestDuration.WithLabelValues("openai", model).Observe(time.Since(start).Seconds())
	p.metrics.LLMRequestCounter.WithLabelValues("openai", model, status).Inc()
}

// convertOpenAIMessages translates normalized messages to the wire form.
// Tool results become role "tool" messages keyed by tool call ID.
func convertOpenAIMessages(messages []agent.Message, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}

		oaiMsg := openai.ChatCompletionMessage{Role: role}
		var toolResults []openai.ChatCompletionMessage

		for _, block := range msg.Content {
			switch b := block.(type) {
			case agent.TextBlock:
				if oaiMsg.Content != "" {
					oaiMsg.Content += "\n"
				}
				oaiMsg.Content += b.Text

			case agent.ToolUseBlock:
				args, err := json.Marshal(b.Input)
				if err != nil {
					return nil, fmt.Errorf("openai: marshal tool call input: %w", err)
				}
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   b.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.Name,
						Arguments: string(args),
					},
				})

			case agent.ToolResultBlock:
				toolResults = append(toolResults, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.Content,
					ToolCallID: b.ToolUseID,
				})

			default:
				return nil, fmt.Errorf("openai: unsupported content block %q", block.BlockType())
			}
		}

		if oaiMsg.Content != "" || len(oaiMsg.ToolCalls) > 0 {
			result = append(result, oaiMsg)
		}
		result = append(result, toolResults...)
	}

	return result, nil
}

// convertOpenAITools translates tool schemas to the wire form.
func convertOpenAITools(tools []agent.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		}
	}
	return result
}
