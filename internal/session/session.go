// Package session anchors a CLI invocation to a single identity that every
// audit record carries, tying task, proposal, decision, and execution events
// together for forensic reconstruction.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Context identifies one CLI invocation.
type Context struct {
	// SessionID is a UUIDv4 shared by every audit record in the session.
	SessionID string

	// StartedAt is the UTC session start time, RFC 3339.
	StartedAt string

	// Operator is the human running the session, for audit attribution.
	// Empty when not provided.
	Operator string
}

// New creates a session context. Call exactly once per CLI invocation.
func New(operator string) Context {
	return Context{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Operator:  operator,
	}
}

// ShortID returns the first eight characters of the session ID, used in
// audit file names and operator-facing output.
func (c Context) ShortID() string {
	if len(c.SessionID) < 8 {
		return c.SessionID
	}
	return c.SessionID[:8]
}
