package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/scrub"
)

// handoffTaskSummaryChars caps the task text recorded in AGENT_HANDOFF.
const handoffTaskSummaryChars = 200

// delegateTool is the delegate_to_agent built-in, injected into an agent's
// registry when handoff.can_delegate_to is non-empty. A delegation builds
// the target agent with the same session wiring, runs it, and tears its MCP
// connections down before returning.
type delegateTool struct {
	orch    *Orchestrator
	parent  string
	allowed []string
}

func newDelegateTool(orch *Orchestrator, parent string, allowed []string) *delegateTool {
	return &delegateTool{orch: orch, parent: parent, allowed: allowed}
}

// Name returns the tool name for LLM function calling.
func (t *delegateTool) Name() string {
	return "delegate_to_agent"
}

// Description returns the tool description.
func (t *delegateTool) Description() string {
	return "Delegate a subtask to a specialized agent. " +
		"Returns the agent's final response as a string."
}

// Schema returns the JSON Schema defining the tool's parameters.
func (t *delegateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"agent": {
				"type": "string",
				"description": "Name of the agent to delegate to"
			},
			"task": {
				"type": "string",
				"description": "Clear description of the subtask"
			},
			"context": {
				"type": "string",
				"description": "Relevant context to pass to the sub-agent"
			}
		},
		"required": ["agent", "task"]
	}`)
}

type delegateParams struct {
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Context string `json:"context"`
}

// Execute runs the delegation. Target-not-allowed and target-not-found are
// result strings the parent model can read, not errors.
func (t *delegateTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p delegateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	if !t.isAllowed(p.Agent) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Error: agent '%s' not in allowed delegation list: %v", p.Agent, t.allowed),
			IsError: true,
		}, nil
	}

	cfg, ok := t.orch.config(p.Agent)
	if !ok {
		candidate := filepath.Join(t.orch.yamlDir(t.parent), p.Agent+".yaml")
		if _, err := os.Stat(candidate); err != nil {
			return &agent.ToolResult{
				Content: fmt.Sprintf("Error: agent '%s' YAML not found.", p.Agent),
				IsError: true,
			}, nil
		}
		var err error
		cfg, err = t.orch.LoadAgentFile(candidate)
		if err != nil {
			return nil, err
		}
	}

	// Handoff is recorded before the sub-agent does any work.
	if t.orch.opts.Auditor != nil {
		if err := t.orch.opts.Auditor.Log(audit.EventAgentHandoff, audit.Record{
			AgentName:   t.parent,
			ToolName:    "delegate_to_agent",
			Outcome:     "delegating_to:" + p.Agent,
			TaskSummary: scrub.String(truncateTask(p.Task, handoffTaskSummaryChars)),
		}); err != nil {
			return nil, err
		}
	}
	if t.orch.opts.Metrics != nil {
		t.orch.opts.Metrics.HandoffCounter.WithLabelValues(t.parent, p.Agent).Inc()
	}
	if t.orch.opts.Logger != nil {
		t.orch.opts.Logger.Info(ctx, "agent handoff", "from", t.parent, "to", p.Agent)
	}

	result, err := t.orch.run(ctx, cfg, p.Task, p.Context)
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{Content: result}, nil
}

func (t *delegateTool) isAllowed(name string) bool {
	for _, allowed := range t.allowed {
		if allowed == name {
			return true
		}
	}
	return false
}

func truncateTask(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
