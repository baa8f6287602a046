package agent

import (
	"context"
	"fmt"

	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/observability"
	"github.com/aegis-agent/aegis/internal/scrub"
)

// Truncation limits for audit record summaries. Full payloads never enter
// the audit trail.
const (
	taskSummaryMaxChars   = 300
	resultSummaryMaxChars = 500
)

// DefaultMaxTurns bounds the loop when the config does not set max_turns.
const DefaultMaxTurns = 20

// defaultMaxTokens is the per-turn response budget requested from providers.
const defaultMaxTokens = 8096

// DeniedResultContent is what the model sees when the operator denies a
// tool call.
const DeniedResultContent = "User denied this tool call."

// Decision is the verification gate's answer for one proposed tool call.
type Decision struct {
	// Approved is false when the operator denied or interrupted.
	Approved bool

	// Input is the arguments to execute with: the original proposal, or
	// the operator's edit.
	Input map[string]any
}

// Verifier is the human verification gate as seen by the loop. The gate
// audits TOOL_CALL_PROPOSED and VERIFICATION_DECISION itself; an error
// return means an audit write failed and the session must stop.
type Verifier interface {
	// UpdateSchemas gives the gate every tool schema in play, so edited
	// arguments can be re-validated before approval.
	UpdateSchemas(tools []ToolSchema)

	// Prompt runs the verification flow for one proposed tool call.
	Prompt(ctx context.Context, agentName, model, toolName string, input map[string]any) (Decision, error)
}

// MCPTools is the MCP connection manager as seen by the loop.
type MCPTools interface {
	// Schemas returns provider-facing schemas for all discovered tools.
	Schemas() []ToolSchema

	// HasTool reports whether any connected server owns the tool.
	HasTool(name string) bool

	// CallTool dispatches to the owning server. Failures come back as
	// result strings, never errors.
	CallTool(ctx context.Context, name string, args map[string]any) string
}

// Agent runs the agentic loop for one configured agent: send the
// conversation, execute verified tool calls, repeat until the model ends
// its turn or the turn budget runs out.
type Agent struct {
	Name         string
	Model        string
	SystemPrompt string
	MaxTurns     int

	Registry *ToolRegistry
	MCP      MCPTools
	Gate     Verifier
	Provider LLMProvider

	Auditor *audit.Logger
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Run executes the agent on a task and returns the final text response.
//
// AGENT_TASK_START is written before any work; AGENT_TASK_END is written on
// every exit path, including provider errors. A failed audit write aborts
// the run.
func (a *Agent) Run(ctx context.Context, task, taskContext string) (finalText string, runErr error) {
	maxTurns := a.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	if err := a.Auditor.Log(audit.EventAgentTaskStart, audit.Record{
		AgentName:   a.Name,
		Model:       a.Model,
		TaskSummary: scrub.String(truncate(task, taskSummaryMaxChars)),
	}); err != nil {
		return "", err
	}

	turn := 0
	outcome := audit.OutcomeCompleted
	defer func() {
		endErr := a.Auditor.Log(audit.EventAgentTaskEnd, audit.Record{
			AgentName: a.Name,
			Model:     a.Model,
			TurnsUsed: turn,
			Outcome:   outcome,
		})
		if runErr == nil {
			runErr = endErr
		}
	}()

	userContent := task
	if taskContext != "" {
		userContent = fmt.Sprintf("Context:\n%s\n\nTask:\n%s", taskContext, task)
	}

	messages := []Message{{
		Role:    "user",
		Content: []ContentBlock{TextBlock{Text: userContent}},
	}}

	tools := a.Registry.Schemas()
	if a.MCP != nil {
		tools = append(tools, a.MCP.Schemas()...)
	}
	a.Gate.UpdateSchemas(tools)

	for turn < maxTurns {
		turn++
		if a.Logger != nil {
			a.Logger.Debug(ctx, "agent turn", "agent", a.Name, "turn", turn, "max_turns", maxTurns)
		}

		response, err := a.Provider.CreateMessage(ctx, &Request{
			Model:     a.Model,
			System:    a.SystemPrompt,
			Messages:  messages,
			Tools:     tools,
			MaxTokens: defaultMaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("provider request failed: %w", err)
		}

		messages = append(messages, Message{Role: "assistant", Content: response.Content})

		switch response.StopReason {
		case StopEndTurn:
			return ExtractText(response.Content), nil

		case StopToolUse:
			results, err := a.handleToolUse(ctx, response.Content)
			if err != nil {
				return "", err
			}
			messages = append(messages, Message{Role: "user", Content: results})

		default:
			if a.Logger != nil {
				a.Logger.Warn(ctx, "unexpected stop reason, stopping", "stop_reason", response.StopReason)
			}
			return ExtractText(response.Content), nil
		}
	}

	if a.Logger != nil {
		a.Logger.Warn(ctx, "reached max turns", "agent", a.Name, "max_turns", maxTurns)
	}
	outcome = audit.OutcomeMaxTurns
	return ExtractText(messages[len(messages)-1].Content), nil
}

// handleToolUse verifies and executes every tool-use block, in order, and
// returns the matching tool-result blocks. Blocks are strictly sequential:
// a dispatch starts only after the previous one finished.
func (a *Agent) handleToolUse(ctx context.Context, content []ContentBlock) ([]ContentBlock, error) {
	var results []ContentBlock

	for _, block := range content {
		use, ok := block.(ToolUseBlock)
		if !ok {
			continue
		}

		input := use.Input
		if input == nil {
			input = map[string]any{}
		}

		decision, err := a.Gate.Prompt(ctx, a.Name, a.Model, use.Name, input)
		if err != nil {
			return nil, err
		}

		var resultContent string
		if !decision.Approved {
			resultContent = DeniedResultContent
		} else {
			var refused bool
			resultContent, refused, err = a.executeTool(ctx, use.Name, decision.Input)
			if err != nil {
				return nil, err
			}

			// A refused dispatch already has its terminal event
			// (TOOL_BLOCKED or TOOL_ACCESS_DENIED) in the trail;
			// each dispatch gets exactly one terminal event.
			if !refused {
				if err := a.Auditor.Log(audit.EventToolExecuted, audit.Record{
					AgentName:         a.Name,
					Model:             a.Model,
					ToolName:          use.Name,
					ToolInputScrubbed: scrub.Map(decision.Input),
					Outcome:           audit.OutcomeSuccess,
					ResultSummary:     scrub.String(truncate(resultContent, resultSummaryMaxChars)),
				}); err != nil {
					return nil, err
				}
			}
		}

		results = append(results, ToolResultBlock{
			ToolUseID: use.ID,
			Content:   resultContent,
		})
	}

	return results, nil
}

// executeTool dispatches to the built-in registry or, when the registry
// does not own the name, to the MCP manager. The bool mirrors
// ToolRegistry.Call: true when the registry already recorded the dispatch's
// terminal security event.
func (a *Agent) executeTool(ctx context.Context, name string, input map[string]any) (string, bool, error) {
	if a.Registry.Has(name) {
		return a.Registry.Call(ctx, name, input)
	}
	if a.MCP != nil {
		return a.MCP.CallTool(ctx, name, input), false, nil
	}
	return fmt.Sprintf("Error: unknown tool '%s'", name), false, nil
}

// truncate cuts s to at most max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
