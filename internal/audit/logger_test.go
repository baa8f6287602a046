package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := New(dir, "11112222-3333-4444-5555-666677778888", "alice")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, dir
}

func TestNewWritesSessionStart(t *testing.T) {
	l, dir := newTestLogger(t)

	records, err := ReadRecords(l.Path())
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.EventType != EventSessionStart {
		t.Errorf("event_type = %q, want %q", rec.EventType, EventSessionStart)
	}
	if rec.SessionID != "11112222-3333-4444-5555-666677778888" {
		t.Errorf("session_id = %q", rec.SessionID)
	}
	if rec.Operator != "alice" {
		t.Errorf("operator = %q, want alice", rec.Operator)
	}
	if rec.EventID == "" || rec.TimestampUTC == "" {
		t.Error("identity fields missing")
	}

	base := filepath.Base(l.Path())
	if !strings.HasPrefix(base, "audit_11112222_") || !strings.HasSuffix(base, ".jsonl") {
		t.Errorf("unexpected file name %q", base)
	}
	if l.LogDir() != dir {
		t.Errorf("LogDir = %q, want %q", l.LogDir(), dir)
	}
}

func TestLogAppendsJSONLines(t *testing.T) {
	l, _ := newTestLogger(t)

	events := []EventType{EventAgentTaskStart, EventToolCallProposed, EventVerificationDecision, EventToolExecuted, EventAgentTaskEnd}
	for _, et := range events {
		if err := l.Log(et, Record{AgentName: "researcher", ToolName: "read_file"}); err != nil {
			t.Fatalf("Log(%s): %v", et, err)
		}
	}

	records, err := ReadRecords(l.Path())
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != len(events)+1 {
		t.Fatalf("got %d records, want %d", len(records), len(events)+1)
	}
	for i, et := range events {
		if records[i+1].EventType != et {
			t.Errorf("record %d event_type = %q, want %q", i+1, records[i+1].EventType, et)
		}
	}

	// Timestamps must not go backwards.
	var prev time.Time
	for i, rec := range records {
		ts, err := time.Parse(time.RFC3339Nano, rec.TimestampUTC)
		if err != nil {
			t.Fatalf("record %d timestamp %q: %v", i, rec.TimestampUTC, err)
		}
		if ts.Before(prev) {
			t.Errorf("record %d timestamp went backwards", i)
		}
		prev = ts
	}
}

func TestLogOverwritesIdentityFields(t *testing.T) {
	l, _ := newTestLogger(t)

	err := l.Log(EventToolExecuted, Record{
		EventID:   "forged",
		SessionID: "foreign-session",
		Operator:  "mallory",
		ToolName:  "bash",
	})
	if err != nil {
		t.Fatal(err)
	}

	records, err := ReadRecords(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	rec := records[len(records)-1]
	if rec.EventID == "forged" {
		t.Error("caller-supplied event_id was kept")
	}
	if rec.SessionID != "11112222-3333-4444-5555-666677778888" {
		t.Errorf("session_id = %q, want the logger's session", rec.SessionID)
	}
	if rec.Operator != "alice" {
		t.Errorf("operator = %q, want the logger's operator", rec.Operator)
	}
}

func TestEmptyFieldsOmitted(t *testing.T) {
	l, _ := newTestLogger(t)
	if err := l.Log(EventToolBlocked, Record{ToolName: "bash", Outcome: OutcomeBlocked, Detail: "denylist"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := lines[len(lines)-1]

	for _, absent := range []string{"task_summary", "result_summary", "server_name", "verification_choice", "turns_used"} {
		if strings.Contains(last, absent) {
			t.Errorf("empty field %q serialized in %s", absent, last)
		}
	}
}

func TestCloseWritesSessionEndAndSeals(t *testing.T) {
	l, _ := newTestLogger(t)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := ReadRecords(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	last := records[len(records)-1]
	if last.EventType != EventSessionEnd {
		t.Errorf("last event = %q, want %q", last.EventType, EventSessionEnd)
	}

	if err := l.Log(EventToolExecuted, Record{}); err == nil {
		t.Error("expected Log after Close to fail")
	}
}

func TestNewRequiresSessionID(t *testing.T) {
	if _, err := New(t.TempDir(), "", "alice"); err == nil {
		t.Error("expected error for missing session ID")
	}
}

func TestNewCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	l, err := New(dir, "aaaabbbb-cccc-dddd-eeee-ffff00001111", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("log dir not created: %v", err)
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
