package gate

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/audit"
)

// scriptedPrompter plays back canned operator choices and edits.
type scriptedPrompter struct {
	choices  []string
	edits    []map[string]any
	confirms []string
	notices  []string
	shown    int
}

func (p *scriptedPrompter) ShowProposal(agentName, toolName string, input map[string]any) {
	p.shown++
}

func (p *scriptedPrompter) ReadChoice() (string, error) {
	if len(p.choices) == 0 {
		return "", io.EOF
	}
	choice := p.choices[0]
	p.choices = p.choices[1:]
	return choice, nil
}

func (p *scriptedPrompter) ReadEdit(original map[string]any) (map[string]any, error) {
	if len(p.edits) == 0 {
		return nil, io.EOF
	}
	edit := p.edits[0]
	p.edits = p.edits[1:]
	if edit == nil {
		return original, nil
	}
	return edit, nil
}

func (p *scriptedPrompter) ConfirmEdit(edited map[string]any) (string, error) {
	if len(p.confirms) == 0 {
		return "", io.EOF
	}
	confirm := p.confirms[0]
	p.confirms = p.confirms[1:]
	return confirm, nil
}

func (p *scriptedPrompter) Notify(msg string) {
	p.notices = append(p.notices, msg)
}

func newTestGate(t *testing.T, mode string, requireFor []string, prompter Prompter) (*Gate, *audit.Logger) {
	t.Helper()
	auditor, err := audit.New(t.TempDir(), "aaaabbbb-0000-1111-2222-333344445555", "tester")
	if err != nil {
		t.Fatal(err)
	}
	return New(mode, requireFor, prompter, auditor, nil), auditor
}

func lastEvents(t *testing.T, auditor *audit.Logger) []audit.Record {
	t.Helper()
	records, err := audit.ReadRecords(auditor.Path())
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func countEvents(records []audit.Record, et audit.EventType) int {
	n := 0
	for _, rec := range records {
		if rec.EventType == et {
			n++
		}
	}
	return n
}

func TestPromptApprove(t *testing.T) {
	p := &scriptedPrompter{choices: []string{"y"}}
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	input := map[string]any{"command": "ls"}
	decision, err := g.Prompt(context.Background(), "researcher", "model-x", "bash", input)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Approved {
		t.Error("expected approval")
	}
	if decision.Input["command"] != "ls" {
		t.Errorf("input changed: %v", decision.Input)
	}

	records := lastEvents(t, auditor)
	if countEvents(records, audit.EventToolCallProposed) != 1 {
		t.Error("expected exactly one TOOL_CALL_PROPOSED")
	}
	if countEvents(records, audit.EventVerificationDecision) != 1 {
		t.Error("expected exactly one VERIFICATION_DECISION")
	}
	last := records[len(records)-1]
	if last.VerificationChoice != ChoiceApproved || last.Outcome != audit.OutcomeApproved {
		t.Errorf("choice=%q outcome=%q", last.VerificationChoice, last.Outcome)
	}
}

func TestPromptDeny(t *testing.T) {
	p := &scriptedPrompter{choices: []string{"n"}}
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	decision, err := g.Prompt(context.Background(), "researcher", "model-x", "bash", map[string]any{"command": "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Approved {
		t.Error("expected denial")
	}

	records := lastEvents(t, auditor)
	last := records[len(records)-1]
	if last.VerificationChoice != ChoiceDenied || last.Outcome != audit.OutcomeDenied {
		t.Errorf("choice=%q outcome=%q", last.VerificationChoice, last.Outcome)
	}
}

func TestPromptGarbageThenDecision(t *testing.T) {
	p := &scriptedPrompter{choices: []string{"maybe", "", "Y", "y"}}
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	// "maybe", "" and "Y" are not recognized; the gate re-prompts until "y".
	decision, err := g.Prompt(context.Background(), "a", "m", "bash", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Approved {
		t.Error("expected eventual approval")
	}
	records := lastEvents(t, auditor)
	if countEvents(records, audit.EventVerificationDecision) != 1 {
		t.Error("re-prompting must not emit extra decisions")
	}
}

func TestPromptInterrupted(t *testing.T) {
	p := &scriptedPrompter{} // empty script: first read returns EOF
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	decision, err := g.Prompt(context.Background(), "a", "m", "bash", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Approved {
		t.Error("interrupt must deny")
	}

	records := lastEvents(t, auditor)
	last := records[len(records)-1]
	if last.VerificationChoice != ChoiceInterrupted {
		t.Errorf("choice = %q, want interrupted", last.VerificationChoice)
	}
}

func TestPromptEditApprove(t *testing.T) {
	edited := map[string]any{"command": "ls -la"}
	p := &scriptedPrompter{choices: []string{"e"}, edits: []map[string]any{edited}, confirms: []string{"y"}}
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	decision, err := g.Prompt(context.Background(), "a", "m", "bash", map[string]any{"command": "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Approved {
		t.Fatal("expected approval")
	}
	if decision.Input["command"] != "ls -la" {
		t.Errorf("expected edited input, got %v", decision.Input)
	}

	records := lastEvents(t, auditor)
	last := records[len(records)-1]
	if last.VerificationChoice != ChoiceEdited {
		t.Errorf("choice = %q, want e", last.VerificationChoice)
	}
	if last.ToolInputScrubbed["command"] != "ls -la" {
		t.Errorf("decision must record the edited input, got %v", last.ToolInputScrubbed)
	}
}

func TestPromptEditRejectedBySchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"command": {"type": "string"}},
		"required": ["command"]
	}`)

	badEdit := map[string]any{"wrong_field": true}
	goodEdit := map[string]any{"command": "echo ok"}
	p := &scriptedPrompter{
		choices:  []string{"e", "e"},
		edits:    []map[string]any{badEdit, goodEdit},
		confirms: []string{"y"},
	}
	g, auditor := newTestGate(t, ModeAlways, nil, p)
	g.UpdateSchemas([]agent.ToolSchema{{Name: "bash", InputSchema: schema}})

	decision, err := g.Prompt(context.Background(), "a", "m", "bash", map[string]any{"command": "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Approved {
		t.Fatal("expected approval after second edit")
	}
	if decision.Input["command"] != "echo ok" {
		t.Errorf("input = %v", decision.Input)
	}
	if len(p.notices) == 0 {
		t.Error("operator was not told the first edit failed validation")
	}

	records := lastEvents(t, auditor)
	if got := countEvents(records, audit.EventVerificationDecision); got != 1 {
		t.Errorf("got %d decisions, want 1", got)
	}
}

func TestPromptEditConfirmNoKeepsDenied(t *testing.T) {
	p := &scriptedPrompter{
		choices:  []string{"e"},
		edits:    []map[string]any{{"command": "rm x"}},
		confirms: []string{"n"},
	}
	g, _ := newTestGate(t, ModeAlways, nil, p)

	decision, err := g.Prompt(context.Background(), "a", "m", "bash", map[string]any{"command": "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Approved {
		t.Error("declining the edit confirmation must deny")
	}
}

func TestAutoApproval(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		requireFor []string
		tool       string
		autoPass   bool
	}{
		{"never mode", ModeNever, nil, "read_file", true},
		{"selective uncovered", ModeSelective, []string{"bash"}, "read_file", true},
		{"selective covered", ModeSelective, []string{"bash"}, "bash", false},
		{"always", ModeAlways, nil, "read_file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedPrompter{choices: []string{"y"}}
			g, auditor := newTestGate(t, tt.mode, tt.requireFor, p)

			decision, err := g.Prompt(context.Background(), "a", "m", tt.tool, map[string]any{})
			if err != nil {
				t.Fatal(err)
			}
			if !decision.Approved {
				t.Fatal("expected approval either way")
			}

			records := lastEvents(t, auditor)
			last := records[len(records)-1]
			if tt.autoPass {
				if p.shown != 0 {
					t.Error("auto-approved call must not prompt")
				}
				if last.VerificationChoice != ChoiceAutoApproved {
					t.Errorf("choice = %q, want auto_approved", last.VerificationChoice)
				}
			} else {
				if p.shown != 1 {
					t.Error("expected an operator prompt")
				}
			}
		})
	}
}

func TestForceReviewOverridesNever(t *testing.T) {
	p := &scriptedPrompter{choices: []string{"n"}}
	g, _ := newTestGate(t, ModeNever, nil, p)
	g.ForceReview([]string{"delete_everything"})

	decision, err := g.Prompt(context.Background(), "a", "m", "delete_everything", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Approved {
		t.Error("forced-review tool must go through the prompt")
	}
	if p.shown != 1 {
		t.Error("expected the proposal to be shown")
	}
}

func TestPromptScrubsAuditInput(t *testing.T) {
	p := &scriptedPrompter{choices: []string{"y"}}
	g, auditor := newTestGate(t, ModeAlways, nil, p)

	input := map[string]any{"command": "export API_KEY=sk-ant-REDACTED"}
	if _, err := g.Prompt(context.Background(), "a", "m", "bash", input); err != nil {
		t.Fatal(err)
	}

	records := lastEvents(t, auditor)
	for _, rec := range records {
		if cmd, ok := rec.ToolInputScrubbed["command"].(string); ok {
			if cmd == input["command"] {
				t.Error("raw secret written to audit trail")
			}
		}
	}
}
