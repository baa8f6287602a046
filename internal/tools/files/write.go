package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/pathguard"
	"github.com/aegis-agent/aegis/internal/validate"
)

// WriteTool implements the write_file built-in.
type WriteTool struct {
	guard *pathguard.Enforcer
}

// NewWriteTool creates a write_file tool bound to the given enforcer.
func NewWriteTool(guard *pathguard.Enforcer) *WriteTool {
	return &WriteTool{guard: guard}
}

// Name returns the tool name for registration with the agent runtime.
func (t *WriteTool) Name() string {
	return "write_file"
}

// Description returns the tool description.
func (t *WriteTool) Description() string {
	return "Write content to a file. Creates parent directories if needed."
}

// Schema returns the JSON schema for tool parameters.
func (t *WriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Absolute or relative file path"},
			"content": {"type": "string", "description": "Content to write"}
		},
		"required": ["path", "content"]
	}`)
}

// Execute writes the file. Content size is capped before the path check so
// an oversized payload is blocked even for an allowed destination.
func (t *WriteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, err
	}

	if err := validate.CheckContentSize(input.Content, "content"); err != nil {
		return nil, err
	}

	resolved, err := t.guard.Check(input.Path, "write")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return toolError(fmt.Sprintf("Error writing file: %v", err)), nil
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return toolError(fmt.Sprintf("Error writing file: %v", err)), nil
	}

	return &agent.ToolResult{
		Content: fmt.Sprintf("Successfully wrote %d chars to %s", len(input.Content), input.Path),
	}, nil
}
