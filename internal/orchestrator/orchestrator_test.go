package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/audit"
)

// scriptedProvider plays back canned responses across every agent built in
// a test, in call order.
type scriptedProvider struct {
	responses []*agent.Response
}

func (p *scriptedProvider) CreateMessage(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	if len(p.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func writeAgentYAML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newOrchestrator(t *testing.T, provider agent.LLMProvider) (*Orchestrator, *audit.Logger) {
	t.Helper()
	auditor, err := audit.New(t.TempDir(), "12341234-5678-9abc-def0-111122223333", "tester")
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{Auditor: auditor, Provider: provider}), auditor
}

func endTurn(text string) *agent.Response {
	return &agent.Response{
		StopReason: agent.StopEndTurn,
		Content:    []agent.ContentBlock{agent.TextBlock{Text: text}},
	}
}

func delegateCall(target, task string) *agent.Response {
	return &agent.Response{
		StopReason: agent.StopToolUse,
		Content: []agent.ContentBlock{agent.ToolUseBlock{
			ID:   "tc1",
			Name: "delegate_to_agent",
			Input: map[string]any{
				"agent": target,
				"task":  task,
			},
		}},
	}
}

const subAgentYAML = `
name: summarizer
model: sub-model
system_prompt: Summarize things.
verification:
  mode: never
`

func parentYAML(workDir string) string {
	return fmt.Sprintf(`
name: lead
model: lead-model
system_prompt: Coordinate the work.
verification:
  mode: never
handoff:
  can_delegate_to: [summarizer]
allowed_paths: [%s]
`, workDir)
}

func TestRunFromYAMLSimple(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	path := writeAgentYAML(t, dir, "lead", parentYAML(work))

	provider := &scriptedProvider{responses: []*agent.Response{endTurn("all done")}}
	orch, _ := newOrchestrator(t, provider)

	result, err := orch.RunFromYAML(context.Background(), path, "do the thing", "")
	if err != nil {
		t.Fatal(err)
	}
	if result != "all done" {
		t.Errorf("result = %q", result)
	}
}

func TestDelegationRunsSubAgent(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	path := writeAgentYAML(t, dir, "lead", parentYAML(work))
	writeAgentYAML(t, dir, "summarizer", subAgentYAML)

	provider := &scriptedProvider{responses: []*agent.Response{
		delegateCall("summarizer", "summarize the report"),
		endTurn("summary from sub-agent"),
		endTurn("final answer"),
	}}
	orch, auditor := newOrchestrator(t, provider)

	result, err := orch.RunFromYAML(context.Background(), path, "coordinate", "")
	if err != nil {
		t.Fatal(err)
	}
	if result != "final answer" {
		t.Errorf("result = %q", result)
	}

	records, err := audit.ReadRecords(auditor.Path())
	if err != nil {
		t.Fatal(err)
	}
	var handoff *audit.Record
	for i := range records {
		if records[i].EventType == audit.EventAgentHandoff {
			handoff = &records[i]
		}
	}
	if handoff == nil {
		t.Fatal("AGENT_HANDOFF not written")
	}
	if handoff.AgentName != "lead" {
		t.Errorf("handoff agent = %q", handoff.AgentName)
	}
	if handoff.Outcome != "delegating_to:summarizer" {
		t.Errorf("handoff outcome = %q", handoff.Outcome)
	}
	if handoff.ToolName != "delegate_to_agent" {
		t.Errorf("handoff tool = %q", handoff.ToolName)
	}
	if handoff.TaskSummary != "summarize the report" {
		t.Errorf("handoff task = %q", handoff.TaskSummary)
	}
}

func TestDelegationScrubsHandoffTask(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	path := writeAgentYAML(t, dir, "lead", parentYAML(work))
	writeAgentYAML(t, dir, "summarizer", subAgentYAML)

	secretTask := "use token=tok_4f9a8b7c6d5e to fetch the report"
	provider := &scriptedProvider{responses: []*agent.Response{
		delegateCall("summarizer", secretTask),
		endTurn("summary"),
		endTurn("final"),
	}}
	orch, auditor := newOrchestrator(t, provider)

	if _, err := orch.RunFromYAML(context.Background(), path, "coordinate", ""); err != nil {
		t.Fatal(err)
	}

	records, err := audit.ReadRecords(auditor.Path())
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if rec.EventType != audit.EventAgentHandoff {
			continue
		}
		if strings.Contains(rec.TaskSummary, "tok_4f9a8b7c6d5e") {
			t.Errorf("handoff task summary leaked the token: %q", rec.TaskSummary)
		}
		if !strings.Contains(rec.TaskSummary, "[REDACTED:") {
			t.Errorf("handoff task summary not scrubbed: %q", rec.TaskSummary)
		}
		return
	}
	t.Fatal("AGENT_HANDOFF not written")
}

func TestDelegationRejectsUnlistedAgent(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	path := writeAgentYAML(t, dir, "lead", parentYAML(work))

	provider := &scriptedProvider{responses: []*agent.Response{
		delegateCall("saboteur", "do something"),
		endTurn("done"),
	}}
	orch, _ := newOrchestrator(t, provider)

	cfg, err := orch.LoadAgentFile(path)
	if err != nil {
		t.Fatal(err)
	}
	a, manager, err := orch.BuildAgent(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Shutdown()

	result, _, err := a.Registry.Call(context.Background(), "delegate_to_agent", map[string]any{
		"agent": "saboteur",
		"task":  "do something",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "Error: agent 'saboteur' not in allowed delegation list: [summarizer]"
	if result != want {
		t.Errorf("got %q, want %q", result, want)
	}
}

func TestDelegationMissingYAML(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	path := writeAgentYAML(t, dir, "lead", parentYAML(work))
	// summarizer is allowed but its YAML does not exist.

	provider := &scriptedProvider{}
	orch, _ := newOrchestrator(t, provider)

	cfg, err := orch.LoadAgentFile(path)
	if err != nil {
		t.Fatal(err)
	}
	a, manager, err := orch.BuildAgent(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Shutdown()

	result, _, err := a.Registry.Call(context.Background(), "delegate_to_agent", map[string]any{
		"agent": "summarizer",
		"task":  "x",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != "Error: agent 'summarizer' YAML not found." {
		t.Errorf("got %q", result)
	}
}

func TestBuildAgentRegistersConfiguredBuiltins(t *testing.T) {
	work := t.TempDir()
	yaml := fmt.Sprintf(`
name: worker
model: m
system_prompt: s
tools:
  builtin: [read_file, list_dir]
allowed_paths: [%s]
`, work)

	cfg, err := ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}

	orch, _ := newOrchestrator(t, &scriptedProvider{})
	a, manager, err := orch.BuildAgent(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Shutdown()

	for _, name := range []string{"read_file", "list_dir"} {
		if !a.Registry.Has(name) {
			t.Errorf("builtin %q not registered", name)
		}
	}
	for _, name := range []string{"bash", "write_file", "web_fetch", "delegate_to_agent"} {
		if a.Registry.Has(name) {
			t.Errorf("tool %q registered but not configured", name)
		}
	}
}

func TestBuildAgentProtectsAuditDir(t *testing.T) {
	work := t.TempDir()
	yaml := fmt.Sprintf(`
name: worker
model: m
system_prompt: s
tools:
  builtin: [write_file]
allowed_paths: [%s]
`, work)

	cfg, err := ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}

	orch, auditor := newOrchestrator(t, &scriptedProvider{})
	// Nest the audit dir inside the allowed root to prove protection wins.
	cfg.Audit.LogDir = auditor.LogDir()
	a, manager, err := orch.BuildAgent(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Shutdown()

	result, refused, err := a.Registry.Call(context.Background(), "write_file", map[string]any{
		"path":    filepath.Join(auditor.LogDir(), "audit_fake.jsonl"),
		"content": "tampered",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result, "Access denied:") {
		t.Errorf("audit dir write not denied: %q", result)
	}
	if !refused {
		t.Error("audit dir write must be reported as a security refusal")
	}
}

func TestHighRiskToolNames(t *testing.T) {
	names := []string{"query_db", "execute_sql", "Shell_Access", "file_writer", "safe_reader", "run_job", "remove_item"}
	got := highRiskToolNames(names)
	want := []string{"execute_sql", "Shell_Access", "file_writer", "run_job"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
