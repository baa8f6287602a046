package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/observability"
	"github.com/aegis-agent/aegis/internal/pathguard"
	"github.com/aegis-agent/aegis/internal/validate"
)

// MaxToolParamsSize is the maximum size of tool parameters JSON (10 MiB).
const MaxToolParamsSize = 10 << 20

// ToolRegistry manages the tools enabled for one agent, with thread-safe
// registration and lookup.
//
// Call is the single dispatch point for built-in tools. It maps security
// failures to audit events and converts every failure into a result string,
// so the agent loop never sees a tool error as a Go error.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	auditor *audit.Logger
	metrics *observability.Metrics
}

// NewToolRegistry creates an empty registry. The audit logger may be nil in
// tests; the metrics may be nil when metrics are not collected.
func NewToolRegistry(auditor *audit.Logger, metrics *observability.Metrics) *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		auditor: auditor,
		metrics: metrics,
	}
}

// Register adds a tool to the registry by its name.
// If a tool with the same name already exists, it is replaced.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Has reports whether a tool is registered under the given name.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas returns provider-facing schemas for all registered tools, sorted
// by name so the tool list presented to the model is deterministic.
func (r *ToolRegistry) Schemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Call executes a registered tool and returns the result string for the
// model. Security failures are audited here:
//
//   - *pathguard.AccessError  -> TOOL_ACCESS_DENIED, "Access denied: ..."
//   - *validate.ValidationError -> TOOL_BLOCKED, "Tool call blocked by security policy: ..."
//   - malformed parameters    -> "Error calling tool '...': ..." (no event)
//   - any other error         -> "Tool '...' raised an error: ..."
//
// The returned bool reports that the dispatch ended in a security refusal
// whose terminal event (TOOL_BLOCKED or TOOL_ACCESS_DENIED) is recorded
// here; the caller must not record a terminal event of its own for it.
//
// The returned error is non-nil only when an audit write fails, which must
// stop the session rather than continue unrecorded.
func (r *ToolRegistry) Call(ctx context.Context, name string, input map[string]any) (string, bool, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name), false, nil
	}

	params, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprintf("Error calling tool '%s': %v", name, err), false, nil
	}
	if len(params) > MaxToolParamsSize {
		blockErr := &validate.ValidationError{
			Field:  name,
			Reason: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
		}
		return r.blocked(name, blockErr)
	}

	result, execErr := tool.Execute(ctx, params)
	if execErr != nil {
		return r.mapError(name, execErr)
	}

	if r.metrics != nil {
		status := "success"
		if result.IsError {
			status = "error"
		}
		r.metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
	}
	return result.Content, false, nil
}

func (r *ToolRegistry) mapError(name string, execErr error) (string, bool, error) {
	var accessErr *pathguard.AccessError
	if errors.As(execErr, &accessErr) {
		if r.metrics != nil {
			r.metrics.ToolBlockedCounter.WithLabelValues(name, "access_denied").Inc()
		}
		if r.auditor != nil {
			if err := r.auditor.Log(audit.EventToolAccessDenied, audit.Record{
				ToolName: name,
				Outcome:  audit.OutcomeAccessDenied,
				Detail:   accessErr.Error(),
			}); err != nil {
				return "", false, err
			}
		}
		return fmt.Sprintf("Access denied: %v", accessErr), true, nil
	}

	var valErr *validate.ValidationError
	if errors.As(execErr, &valErr) {
		return r.blocked(name, valErr)
	}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(execErr, &typeErr) || errors.As(execErr, &syntaxErr) {
		return fmt.Sprintf("Error calling tool '%s': %v", name, execErr), false, nil
	}

	if r.metrics != nil {
		r.metrics.ToolExecutionCounter.WithLabelValues(name, "error").Inc()
	}
	return fmt.Sprintf("Tool '%s' raised an error: %v", name, execErr), false, nil
}

func (r *ToolRegistry) blocked(name string, valErr *validate.ValidationError) (string, bool, error) {
	if r.metrics != nil {
		r.metrics.ToolBlockedCounter.WithLabelValues(name, "blocked").Inc()
	}
	if r.auditor != nil {
		if err := r.auditor.Log(audit.EventToolBlocked, audit.Record{
			ToolName: name,
			Outcome:  audit.OutcomeBlocked,
			Detail:   valErr.Error(),
		}); err != nil {
			return "", false, err
		}
	}
	return fmt.Sprintf("Tool call blocked by security policy: %v", valErr), true, nil
}
