package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/pathguard"
)

// ListTool implements the list_dir built-in.
type ListTool struct {
	guard *pathguard.Enforcer
}

// NewListTool creates a list_dir tool bound to the given enforcer.
func NewListTool(guard *pathguard.Enforcer) *ListTool {
	return &ListTool{guard: guard}
}

// Name returns the tool name for registration with the agent runtime.
func (t *ListTool) Name() string {
	return "list_dir"
}

// Description returns the tool description.
func (t *ListTool) Description() string {
	return "List the contents of a directory."
}

// Schema returns the JSON schema for tool parameters.
func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory path (default: current directory)"}
		},
		"required": []
	}`)
}

// Execute lists the directory, directories first, then files with sizes.
func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, err
	}
	if input.Path == "" {
		input.Path = "."
	}

	resolved, err := t.guard.Check(input.Path, "list")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return toolError(fmt.Sprintf("Error: path not found: %s", input.Path)), nil
	}
	if err != nil {
		return toolError(fmt.Sprintf("Error listing directory: %v", err)), nil
	}
	if !info.IsDir() {
		return toolError(fmt.Sprintf("Error: not a directory: %s", input.Path)), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("Error listing directory: %v", err)), nil
	}

	// Directories sort before files, each group alphabetical.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var lines []string
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, fmt.Sprintf("[DIR]  %s/", entry.Name()))
			continue
		}
		size := int64(0)
		if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		}
		lines = append(lines, fmt.Sprintf("[FILE] %s (%d bytes)", entry.Name(), size))
	}

	if len(lines) == 0 {
		return &agent.ToolResult{Content: "(empty directory)"}, nil
	}
	return &agent.ToolResult{Content: strings.Join(lines, "\n")}, nil
}
