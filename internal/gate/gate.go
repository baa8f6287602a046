// Package gate implements the human verification gate. Every proposed tool
// call is audited; calls that require review block until the operator
// approves, denies, or edits them. Edited arguments are re-validated
// against the tool's schema before they can be approved.
package gate

import (
	"context"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/observability"
	"github.com/aegis-agent/aegis/internal/scrub"
	"github.com/aegis-agent/aegis/internal/validate"
)

// Verification modes.
const (
	ModeAlways    = "always"
	ModeSelective = "selective"
	ModeNever     = "never"
)

// Verification choices recorded in VERIFICATION_DECISION records.
const (
	ChoiceApproved     = "y"
	ChoiceDenied       = "n"
	ChoiceEdited       = "e"
	ChoiceAutoApproved = "auto_approved"
	ChoiceInterrupted  = "interrupted"
)

// Prompter is the operator interaction surface. The terminal implementation
// lives in this package; tests script their own.
//
// Any error returned from a read means the operator interrupted (EOF or
// Ctrl-C), which the gate records as a denial with choice "interrupted".
type Prompter interface {
	// ShowProposal displays a proposed tool call with its raw, unscrubbed
	// arguments so the operator reviews what would actually execute.
	ShowProposal(agentName, toolName string, input map[string]any)

	// ReadChoice reads the operator's answer: "y", "n", or "e". The gate
	// re-prompts on anything else.
	ReadChoice() (string, error)

	// ReadEdit collects replacement arguments as JSON. When the operator
	// submits something unparsable, implementations return the original
	// input unchanged.
	ReadEdit(original map[string]any) (map[string]any, error)

	// ConfirmEdit shows the edited arguments and reads "y" or "n".
	ConfirmEdit(edited map[string]any) (string, error)

	// Notify shows an informational message to the operator.
	Notify(msg string)
}

// Gate decides, per tool call, whether a human must review it, runs the
// review, and audits the outcome.
type Gate struct {
	mode       string
	requireFor map[string]bool
	forced     map[string]bool
	schemas    *validate.SchemaSet
	prompter   Prompter
	auditor    *audit.Logger
	metrics    *observability.Metrics
}

// New creates a gate. mode defaults to "always" when empty.
func New(mode string, requireFor []string, prompter Prompter, auditor *audit.Logger, metrics *observability.Metrics) *Gate {
	if mode == "" {
		mode = ModeAlways
	}
	required := make(map[string]bool, len(requireFor))
	for _, name := range requireFor {
		required[name] = true
	}
	return &Gate{
		mode:       mode,
		requireFor: required,
		forced:     make(map[string]bool),
		schemas:    validate.NewSchemaSet(),
		prompter:   prompter,
		auditor:    auditor,
		metrics:    metrics,
	}
}

// ForceReview marks tools that must be reviewed regardless of mode. Used
// for high-risk MCP-discovered tools when the config says "never".
func (g *Gate) ForceReview(toolNames []string) {
	for _, name := range toolNames {
		g.forced[name] = true
	}
}

// UpdateSchemas registers every tool schema currently in play, so edited
// arguments can be re-validated. Called by the loop after MCP discovery.
func (g *Gate) UpdateSchemas(tools []agent.ToolSchema) {
	for _, tool := range tools {
		if len(tool.InputSchema) == 0 {
			continue
		}
		// A schema that fails to compile just skips re-validation for
		// that tool; the proposal flow itself is unaffected.
		_ = g.schemas.Register(tool.Name, tool.InputSchema)
	}
}

// needsVerification applies the mode and the forced-review set.
func (g *Gate) needsVerification(toolName string) bool {
	if g.forced[toolName] {
		return true
	}
	switch g.mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	default:
		return g.requireFor[toolName]
	}
}

// Prompt runs the verification flow for one proposed tool call. It emits
// TOOL_CALL_PROPOSED, then exactly one VERIFICATION_DECISION. The returned
// error is non-nil only when an audit write fails.
func (g *Gate) Prompt(ctx context.Context, agentName, model, toolName string, input map[string]any) (agent.Decision, error) {
	if err := g.auditor.Log(audit.EventToolCallProposed, audit.Record{
		AgentName:         agentName,
		Model:             model,
		ToolName:          toolName,
		ToolInputScrubbed: scrub.Map(input),
	}); err != nil {
		return agent.Decision{}, err
	}

	if !g.needsVerification(toolName) {
		return g.decide(agentName, model, toolName, ChoiceAutoApproved, true, input)
	}

	g.prompter.ShowProposal(agentName, toolName, input)

	for {
		choice, err := g.prompter.ReadChoice()
		if err != nil {
			return g.decide(agentName, model, toolName, ChoiceInterrupted, false, input)
		}

		switch choice {
		case "y":
			return g.decide(agentName, model, toolName, ChoiceApproved, true, input)

		case "n":
			return g.decide(agentName, model, toolName, ChoiceDenied, false, input)

		case "e":
			edited, err := g.prompter.ReadEdit(input)
			if err != nil {
				return g.decide(agentName, model, toolName, ChoiceInterrupted, false, input)
			}

			if err := g.schemas.Validate(toolName, edited); err != nil {
				g.prompter.Notify("Edited input rejected: " + err.Error())
				continue
			}

			confirm, err := g.prompter.ConfirmEdit(edited)
			if err != nil {
				return g.decide(agentName, model, toolName, ChoiceInterrupted, false, input)
			}
			switch confirm {
			case "y":
				return g.decide(agentName, model, toolName, ChoiceEdited, true, edited)
			case "n":
				return g.decide(agentName, model, toolName, ChoiceDenied, false, input)
			}
			// Anything else restarts the prompt from the original input.

		default:
			// Unrecognized input re-prompts.
		}
	}
}

// decide emits the VERIFICATION_DECISION record and builds the result.
func (g *Gate) decide(agentName, model, toolName, choice string, approved bool, finalInput map[string]any) (agent.Decision, error) {
	outcome := audit.OutcomeDenied
	if approved {
		outcome = audit.OutcomeApproved
	}

	if g.metrics != nil {
		g.metrics.VerificationDecisionCounter.WithLabelValues(choice).Inc()
	}

	if err := g.auditor.Log(audit.EventVerificationDecision, audit.Record{
		AgentName:          agentName,
		Model:              model,
		ToolName:           toolName,
		VerificationChoice: choice,
		ToolInputScrubbed:  scrub.Map(finalInput),
		Outcome:            outcome,
	}); err != nil {
		return agent.Decision{}, err
	}

	return agent.Decision{Approved: approved, Input: finalInput}, nil
}
