// Package audit provides the append-only JSONL audit trail for agent
// sessions: task lifecycle, tool call proposals, verification decisions,
// executions, blocks, denials, handoffs, and MCP connection events.
package audit

// EventType categorizes audit events.
type EventType string

const (
	EventSessionStart EventType = "SESSION_START"
	EventSessionEnd   EventType = "SESSION_END"

	EventAgentTaskStart EventType = "AGENT_TASK_START"
	EventAgentTaskEnd   EventType = "AGENT_TASK_END"

	EventToolCallProposed     EventType = "TOOL_CALL_PROPOSED"
	EventVerificationDecision EventType = "VERIFICATION_DECISION"
	EventToolExecuted         EventType = "TOOL_EXECUTED"
	EventToolBlocked          EventType = "TOOL_BLOCKED"
	EventToolAccessDenied     EventType = "TOOL_ACCESS_DENIED"
	EventValidationFailed     EventType = "VALIDATION_FAILED"

	EventAgentHandoff EventType = "AGENT_HANDOFF"

	EventMCPConnect       EventType = "MCP_CONNECT"
	EventMCPConnectFailed EventType = "MCP_CONNECT_FAILED"
)

// Record is one JSONL audit line. EventID, TimestampUTC, SessionID,
// EventType, and Operator are filled in by the Logger; everything else is
// event-specific and omitted when empty.
type Record struct {
	EventID      string    `json:"event_id"`
	TimestampUTC string    `json:"timestamp_utc"`
	SessionID    string    `json:"session_id"`
	EventType    EventType `json:"event_type"`
	Operator     string    `json:"operator,omitempty"`

	AgentName          string         `json:"agent_name,omitempty"`
	Model              string         `json:"model,omitempty"`
	ToolName           string         `json:"tool_name,omitempty"`
	ToolInputScrubbed  map[string]any `json:"tool_input_scrubbed,omitempty"`
	VerificationChoice string         `json:"verification_choice,omitempty"`
	Outcome            string         `json:"outcome,omitempty"`
	Detail             string         `json:"detail,omitempty"`
	TaskSummary        string         `json:"task_summary,omitempty"`
	ResultSummary      string         `json:"result_summary,omitempty"`
	TurnsUsed          int            `json:"turns_used,omitempty"`

	ServerName string `json:"server_name,omitempty"`
	Transport  string `json:"transport,omitempty"`
	Command    string `json:"command,omitempty"`
	ToolCount  int    `json:"tool_count,omitempty"`
}

// Outcome values recorded in the audit trail.
const (
	OutcomeApproved     = "approved"
	OutcomeDenied       = "denied"
	OutcomeSuccess      = "success"
	OutcomeBlocked      = "blocked"
	OutcomeAccessDenied = "access_denied"
	OutcomeCompleted    = "completed"
	OutcomeMaxTurns     = "max_turns"
)
