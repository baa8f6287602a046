package validate

import (
	"fmt"
	"regexp"
)

// blockRule pairs a compiled denylist pattern with the human-readable
// description carried into error messages and audit detail.
type blockRule struct {
	re   *regexp.Regexp
	desc string
}

// The shell command denylist. Matching is unconditional: a hit here blocks
// the command before the verification gate ever sees it, and operator
// approval cannot override it.
var commandBlocklist = []blockRule{
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]*f[a-zA-Z]*\s+|--force\s+)?/`), "rm of root-anchored path"},
	{regexp.MustCompile(`\bmkfs\b`), "filesystem format"},
	{regexp.MustCompile(`\bdd\b.*\bof=/dev/`), "raw device write via dd"},
	{regexp.MustCompile(`>\s*/dev/sd[a-z]\b`), "redirect to block device"},
	{regexp.MustCompile(`\bshred\b`), "secure file deletion"},
	{regexp.MustCompile(`\bwipefs\b`), "filesystem wipe"},
	{regexp.MustCompile(`:\(\)\s*\{.*\}.*:`), "fork bomb"},
	{regexp.MustCompile(`\bcurl\b[^|]*\|\s*(bash|sh|python3?|perl|ruby)\b`), "curl pipe-to-shell"},
	{regexp.MustCompile(`\bwget\b[^|]*\|\s*(bash|sh|python3?|perl|ruby)\b`), "wget pipe-to-shell"},
	{regexp.MustCompile(`>\s*/etc/(passwd|shadow|sudoers|crontab)\b`), "system credential file overwrite"},
	{regexp.MustCompile(`\biptables\s+-F\b`), "firewall rule flush"},
	{regexp.MustCompile(`\bufw\s+disable\b`), "firewall disable"},
	{regexp.MustCompile(`\bkill\s+-9\s+-1\b`), "kill all processes"},
	{regexp.MustCompile(`\bchmod\s+(777|a\+rwx)\s+/`), "world-write on root-anchored path"},
}

// ValidateBashCommand rejects empty, oversized, or denylisted shell
// commands. The returned error's reason names the matched rule so the audit
// trail records why the command was blocked.
func ValidateBashCommand(command string) error {
	if command == "" {
		return &ValidationError{Field: "command", Reason: "command must not be empty"}
	}
	if len(command) > MaxCommandLen {
		return &ValidationError{
			Field:  "command",
			Reason: fmt.Sprintf("command length %d exceeds limit of %d", len(command), MaxCommandLen),
		}
	}
	for _, rule := range commandBlocklist {
		if rule.re.MatchString(command) {
			return &ValidationError{
				Field:  "command",
				Reason: fmt.Sprintf("command blocked, matches denylist pattern: %q", rule.desc),
			}
		}
	}
	return nil
}
