package mcp

import (
	"context"
	"encoding/json"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/observability"
)

// Manager owns the MCP connections for one agent and implements the loop's
// MCPTools interface.
type Manager struct {
	clients []*Client
	logger  *observability.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{logger: logger}
}

// ConnectAll validates and connects every configured server. A failed
// server is recorded (MCP_CONNECT_FAILED) and skipped; the rest connect.
// Server env blocks are passed to subprocesses but never audited.
func (m *Manager) ConnectAll(ctx context.Context, configs []ServerConfig, auditor *audit.Logger) error {
	for i := range configs {
		cfg := configs[i]

		err := cfg.Validate()
		if err == nil {
			client := NewClient(&cfg)
			if err = client.Connect(ctx); err == nil {
				m.clients = append(m.clients, client)
				if m.logger != nil {
					m.logger.Info(ctx, "connected to MCP server",
						"server", cfg.Name, "tools", len(client.Tools()))
				}
				if auditor != nil {
					if logErr := auditor.Log(audit.EventMCPConnect, audit.Record{
						ServerName: cfg.Name,
						Transport:  cfg.Transport,
						Command:    cfg.Command,
						ToolCount:  len(client.Tools()),
					}); logErr != nil {
						return logErr
					}
				}
				continue
			}
		}

		if m.logger != nil {
			m.logger.Warn(ctx, "failed to connect to MCP server", "server", cfg.Name, "error", err)
		}
		if auditor != nil {
			if logErr := auditor.Log(audit.EventMCPConnectFailed, audit.Record{
				ServerName: cfg.Name,
				Detail:     err.Error(),
			}); logErr != nil {
				return logErr
			}
		}
	}
	return nil
}

// Schemas returns provider-facing schemas for every discovered tool.
func (m *Manager) Schemas() []agent.ToolSchema {
	var schemas []agent.ToolSchema
	for _, client := range m.clients {
		for _, tool := range client.Tools() {
			inputSchema := tool.InputSchema
			if len(inputSchema) == 0 {
				inputSchema = json.RawMessage(`{"type":"object","properties":{}}`)
			}
			schemas = append(schemas, agent.ToolSchema{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: inputSchema,
			})
		}
	}
	return schemas
}

// ToolNames returns the names of every discovered tool.
func (m *Manager) ToolNames() []string {
	var names []string
	for _, client := range m.clients {
		for _, tool := range client.Tools() {
			names = append(names, tool.Name)
		}
	}
	return names
}

// HasTool reports whether any connected server owns the tool.
func (m *Manager) HasTool(name string) bool {
	for _, client := range m.clients {
		if client.HasTool(name) {
			return true
		}
	}
	return false
}

// CallTool dispatches to the server that owns the tool.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) string {
	for _, client := range m.clients {
		if client.HasTool(name) {
			return client.CallTool(ctx, name, args)
		}
	}
	return "Error: MCP tool '" + name + "' not found in any connected server"
}

// Shutdown closes every connection.
func (m *Manager) Shutdown() {
	for _, client := range m.clients {
		client.Close()
	}
	m.clients = nil
}
