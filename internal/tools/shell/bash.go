// Package shell provides the bash built-in tool.
//
// Two layers of control run before any subprocess is spawned: the command
// denylist (which human approval cannot override) and the timeout clamp.
// The human verification gate is an additional control on top of these.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/pathguard"
	"github.com/aegis-agent/aegis/internal/validate"
)

// DefaultTimeoutSeconds applies when the model does not request a timeout.
const DefaultTimeoutSeconds = 60

// BashTool implements the bash built-in. The subprocess working directory
// is the first allowed root of the agent's path enforcer.
type BashTool struct {
	guard *pathguard.Enforcer
}

// NewBashTool creates a bash tool bound to the given enforcer.
func NewBashTool(guard *pathguard.Enforcer) *BashTool {
	return &BashTool{guard: guard}
}

// Name returns the tool name for registration with the agent runtime.
func (t *BashTool) Name() string {
	return "bash"
}

// Description returns the tool description.
func (t *BashTool) Description() string {
	return "Run a shell command. Always requires user verification. " +
		"Dangerous patterns are blocked unconditionally by security policy."
}

// Schema returns the JSON schema for tool parameters.
func (t *BashTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to execute"},
			"timeout": {
				"type": "integer",
				"description": "Timeout in seconds (max 300, default 60)",
				"default": 60
			}
		},
		"required": ["command"]
	}`)
}

// Execute validates the command against the denylist, clamps the timeout,
// and runs the command with stdout and stderr combined. Timeouts and
// non-zero exits are reported as result text, not errors.
func (t *BashTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, err
	}

	if err := validate.ValidateBashCommand(input.Command); err != nil {
		return nil, err
	}

	timeout := input.Timeout
	if timeout == 0 {
		timeout = DefaultTimeoutSeconds
	}
	timeout = validate.ClampBashTimeout(timeout)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", input.Command)
	if roots := t.guard.AllowedRoots(); len(roots) > 0 {
		cmd.Dir = roots[0]
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Error: command timed out after %ds", timeout),
			IsError: true,
		}, nil
	}

	var parts []string
	if stdout.Len() > 0 {
		parts = append(parts, stdout.String())
	}
	if stderr.Len() > 0 {
		parts = append(parts, fmt.Sprintf("[stderr]\n%s", stderr.String()))
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		parts = append(parts, fmt.Sprintf("[exit code: %d]", exitErr.ExitCode()))
	} else if runErr != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Error running command: %v", runErr),
			IsError: true,
		}, nil
	}

	if len(parts) == 0 {
		return &agent.ToolResult{Content: "(no output)"}, nil
	}
	return &agent.ToolResult{Content: strings.Join(parts, "\n")}, nil
}
