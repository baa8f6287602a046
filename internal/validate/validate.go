// Package validate provides machine-level input validation for tool calls:
// a shell command denylist, size and timeout caps, URL and SSRF screening,
// and JSON Schema validation of tool arguments.
//
// These checks run before the human verification gate and cannot be
// overridden by operator approval.
package validate

import "fmt"

// Size and length limits applied before any tool execution.
const (
	// MaxCommandLen caps the length of a shell command.
	MaxCommandLen = 4096

	// MaxContentBytes caps file writes, web response bodies, and MCP tool
	// results (10 MiB).
	MaxContentBytes = 10 * 1024 * 1024

	// MaxURLLen caps URL length for web_fetch.
	MaxURLLen = 2048

	// MaxBashTimeout is the upper bound, in seconds, for shell timeouts.
	MaxBashTimeout = 300
)

// ValidationError reports input rejected by a security policy check. The
// tool registry maps it to a TOOL_BLOCKED audit event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ClampBashTimeout clamps a requested shell timeout into [1, MaxBashTimeout]
// seconds. Zero and negative values clamp to 1.
func ClampBashTimeout(seconds int) int {
	if seconds < 1 {
		return 1
	}
	if seconds > MaxBashTimeout {
		return MaxBashTimeout
	}
	return seconds
}

// CheckContentSize rejects content larger than MaxContentBytes. The field
// name appears in the error so audit detail identifies what was oversized.
func CheckContentSize(content string, field string) error {
	if len(content) > MaxContentBytes {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("content size %d bytes exceeds limit of %d bytes", len(content), MaxContentBytes),
		}
	}
	return nil
}
