// Package agent implements the turn-synchronous agent loop and the tool
// registry that backs it. Tools never return errors into the loop: every
// failure becomes a string result the model can read, and security failures
// additionally produce audit events.
package agent

import (
	"context"
	"encoding/json"
)

// Stop reasons returned by providers.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// ContentBlock is one element of a message. Exactly one concrete type
// applies per block: TextBlock, ToolUseBlock, or ToolResultBlock.
type ContentBlock interface {
	// BlockType returns "text", "tool_use", or "tool_result".
	BlockType() string
}

// TextBlock carries model or user text.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) BlockType() string { return "text" }

// ToolUseBlock is a model request to execute a tool.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) BlockType() string { return "tool_use" }

// ToolResultBlock carries the result of a tool execution back to the model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

func (ToolResultBlock) BlockType() string { return "tool_result" }

// Message is one turn of conversation.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content holds the message blocks in order.
	Content []ContentBlock
}

// ToolSchema describes a tool to the provider. Built-in tools derive it from
// their Schema method; MCP tools arrive in this form from discovery.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request contains all parameters for one provider turn.
type Request struct {
	// Model specifies which LLM model to use.
	Model string

	// System is the system prompt.
	System string

	// Messages contains the conversation history in chronological order.
	Messages []Message

	// Tools defines the tools the model may request.
	Tools []ToolSchema

	// MaxTokens limits the response length. If 0, the provider default is used.
	MaxTokens int
}

// Response is a normalized provider response.
type Response struct {
	// StopReason is StopEndTurn or StopToolUse.
	StopReason string

	// Content holds the response blocks. Tool-use blocks appear in the
	// order the model emitted them and are executed in that order.
	Content []ContentBlock
}

// LLMProvider is the interface for model backends.
//
// Implementations must be safe for concurrent use and must honor context
// cancellation on CreateMessage.
type LLMProvider interface {
	// CreateMessage sends one conversation turn and returns the
	// normalized response.
	CreateMessage(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name ("anthropic", "openai").
	Name() string
}

// Tool is the interface for executable agent tools.
//
// Execute returns a *ToolResult for anything the model should see,
// including tool-level failures (IsError=true). It returns a non-nil error
// only for security policy failures (*pathguard.AccessError,
// *validate.ValidationError) and malformed parameters, which the registry
// maps to audit events and result strings.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description returns a natural language description of the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution.
type ToolResult struct {
	// Content is the tool's output.
	Content string `json:"content"`

	// IsError indicates this result represents an error condition.
	IsError bool `json:"is_error,omitempty"`
}

// ExtractText concatenates all text blocks in a content list.
func ExtractText(content []ContentBlock) string {
	var out string
	for _, block := range content {
		if text, ok := block.(TextBlock); ok {
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
	}
	return out
}
