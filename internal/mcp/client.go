package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aegis-agent/aegis/internal/validate"
)

// Client wraps a transport with the MCP handshake and tool operations for
// one server.
type Client struct {
	config    *ServerConfig
	transport *StdioTransport
	tools     []ToolInfo
}

// NewClient creates a client for a validated server config.
func NewClient(cfg *ServerConfig) *Client {
	return &Client{
		config:    cfg,
		transport: NewStdioTransport(cfg),
	}
}

// Connect spawns the server, performs the initialize handshake, and
// discovers its tools.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	initParams := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "aegis",
			"version": "1.0",
		},
	}
	if _, err := c.transport.Call(ctx, "initialize", initParams); err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.transport.Close()
		return fmt.Errorf("initialized notification: %w", err)
	}

	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("tools/list: %w", err)
	}
	var listed toolsListResult
	if err := json.Unmarshal(result, &listed); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	c.tools = listed.Tools

	return nil
}

// Tools returns the tools discovered at connect time.
func (c *Client) Tools() []ToolInfo {
	return c.tools
}

// HasTool reports whether this server owns a tool.
func (c *Client) HasTool(name string) bool {
	for _, tool := range c.tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

// CallTool dispatches a tool call and returns the text content of the
// result, capped at the content size limit with an explicit truncation
// notice. Failures come back as result strings so the agent loop treats
// them like any other tool output.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) string {
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}
	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return fmt.Sprintf("MCP tool error: %v", err)
	}

	var parsed toolCallResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Sprintf("MCP tool error: unparsable result: %v", err)
	}

	var parts []string
	for _, block := range parsed.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if len(text) > validate.MaxContentBytes {
		text = text[:validate.MaxContentBytes] +
			fmt.Sprintf("\n...[truncated: response exceeded %d MB]", validate.MaxContentBytes/(1024*1024))
	}
	return text
}

// Close shuts the server subprocess down.
func (c *Client) Close() error {
	return c.transport.Close()
}
