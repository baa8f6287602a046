// Package files provides the read_file, write_file, and list_dir built-in
// tools. Every operation is confined by the agent's path enforcer; denials
// surface as *pathguard.AccessError so the registry can audit them.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/pathguard"
)

// ReadTool implements the read_file built-in.
type ReadTool struct {
	guard *pathguard.Enforcer
}

// NewReadTool creates a read_file tool bound to the given enforcer.
func NewReadTool(guard *pathguard.Enforcer) *ReadTool {
	return &ReadTool{guard: guard}
}

// Name returns the tool name for registration with the agent runtime.
func (t *ReadTool) Name() string {
	return "read_file"
}

// Description returns the tool description.
func (t *ReadTool) Description() string {
	return "Read the contents of a file at the given path."
}

// Schema returns the JSON schema for tool parameters.
func (t *ReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Absolute or relative file path"}
		},
		"required": ["path"]
	}`)
}

// Execute reads the file. The path must resolve inside an allowed root.
func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, err
	}

	resolved, err := t.guard.Check(input.Path, "read")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return toolError(fmt.Sprintf("Error: file not found: %s", input.Path)), nil
	}
	if err != nil {
		return toolError(fmt.Sprintf("Error reading file: %v", err)), nil
	}
	if info.IsDir() {
		return toolError(fmt.Sprintf("Error: not a file: %s", input.Path)), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("Error reading file: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(data)}, nil
}

// toolError wraps a message as a non-fatal error result for the model.
func toolError(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
