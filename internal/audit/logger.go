package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLogDir is used when no audit log directory is configured.
const DefaultLogDir = ".audit_logs"

// Logger writes audit records to an append-only JSONL file, one record per
// line. Every write is synchronous: open with O_APPEND, write, fsync, close.
// A failed write is returned to the caller, never dropped. The file is named
// audit_<session8>_<YYYYMMDD>.jsonl under the log directory.
type Logger struct {
	mu        sync.Mutex
	path      string
	logDir    string
	sessionID string
	operator  string
	closed    bool
}

// New creates the log directory if needed, opens a session log file, and
// writes the SESSION_START record.
func New(logDir, sessionID, operator string) (*Logger, error) {
	if logDir == "" {
		logDir = DefaultLogDir
	}
	if sessionID == "" {
		return nil, fmt.Errorf("audit: session ID is required")
	}
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create log dir %q: %w", logDir, err)
	}

	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("audit_%s_%s.jsonl", short, time.Now().UTC().Format("20060102"))

	l := &Logger{
		path:      filepath.Join(logDir, name),
		logDir:    logDir,
		sessionID: sessionID,
		operator:  operator,
	}
	if err := l.Log(EventSessionStart, Record{}); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the audit log file path, shown to the operator at startup.
func (l *Logger) Path() string {
	return l.path
}

// LogDir returns the audit log directory, protected from agent writes.
func (l *Logger) LogDir() string {
	return l.logDir
}

// Log appends one record. The caller fills event-specific fields; identity
// fields are overwritten here so a record can never carry a foreign session.
func (l *Logger) Log(eventType EventType, rec Record) error {
	rec.EventID = uuid.NewString()
	rec.TimestampUTC = time.Now().UTC().Format(time.RFC3339Nano)
	rec.SessionID = l.sessionID
	rec.EventType = eventType
	rec.Operator = l.operator

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal %s record: %w", eventType, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("audit: logger is closed")
	}
	return l.append(line)
}

// append writes a single line and syncs it to disk before returning.
func (l *Logger) append(line []byte) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open %q: %w", l.path, err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("audit: write %q: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: sync %q: %w", l.path, err)
	}
	return f.Close()
}

// Close writes the SESSION_END record and marks the logger unusable.
func (l *Logger) Close() error {
	if err := l.Log(EventSessionEnd, Record{}); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// ReadRecords parses a JSONL audit file, used by tests and tooling.
func ReadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("audit: parse record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
