package gate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompter reads operator decisions from an interactive terminal.
// Edits are collected as JSON terminated by two consecutive blank lines.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter on the given streams (normally
// stdin and stdout).
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// ShowProposal displays the tool call with its raw arguments. The operator
// must see what would execute, so nothing is scrubbed here; scrubbing only
// applies to the audit trail.
func (p *TerminalPrompter) ShowProposal(agentName, toolName string, input map[string]any) {
	pretty, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("%v", input))
	}
	fmt.Fprintf(p.out, "\n[%s] proposes tool call: %s\n%s\n", agentName, toolName, pretty)
	fmt.Fprint(p.out, "Approve? [y]es / [n]o / [e]dit: ")
}

// ReadChoice reads one trimmed, lowercased line.
func (p *TerminalPrompter) ReadChoice() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// ReadEdit collects JSON lines until two consecutive blank lines. Input
// that does not parse keeps the original arguments.
func (p *TerminalPrompter) ReadEdit(original map[string]any) (map[string]any, error) {
	fmt.Fprintln(p.out, "Enter replacement JSON arguments (finish with two blank lines):")

	var lines []string
	blanks := 0
	for blanks < 2 {
		line, err := p.in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			blanks++
			continue
		}
		blanks = 0
		lines = append(lines, trimmed)
	}

	var edited map[string]any
	if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &edited); err != nil {
		fmt.Fprintf(p.out, "Invalid JSON (%v), keeping original arguments.\n", err)
		return original, nil
	}
	return edited, nil
}

// ConfirmEdit shows the edited arguments and reads the confirmation.
func (p *TerminalPrompter) ConfirmEdit(edited map[string]any) (string, error) {
	pretty, err := json.MarshalIndent(edited, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("%v", edited))
	}
	fmt.Fprintf(p.out, "Edited arguments:\n%s\nExecute with these? [y]es / [n]o: ", pretty)
	return p.ReadChoice()
}

// Notify prints an informational message.
func (p *TerminalPrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}
