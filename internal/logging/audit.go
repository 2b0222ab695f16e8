package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditTrail appends one JSON line per pipeline event to a run-scoped file,
// so a verification run can be reconstructed after the fact without scraping
// logs. A nil AuditTrail is valid and records nothing.
type AuditTrail struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// AuditRecord is one line of the trail.
type AuditRecord struct {
	Time    time.Time      `json:"time"`
	Event   string         `json:"event"`
	ClaimID string         `json:"claim_id,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NewAuditTrail opens (creating dir if needed) the trail file for runID.
func NewAuditTrail(dir, runID string) (*AuditTrail, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	return &AuditTrail{f: f, path: path}, nil
}

// Path returns the trail file location.
func (a *AuditTrail) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Record appends one event. Write errors are swallowed: the trail must never
// fail a run.
func (a *AuditTrail) Record(event, claimID string, fields map[string]any) {
	if a == nil {
		return
	}
	line, err := json.Marshal(AuditRecord{
		Time:    time.Now().UTC(),
		Event:   event,
		ClaimID: claimID,
		Fields:  fields,
	})
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return
	}
	line = append(line, '\n')
	_, _ = a.f.Write(line)
}

// Close flushes and closes the trail file.
func (a *AuditTrail) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}
