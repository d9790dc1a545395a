package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityRecord is one newline-delimited JSON entry appended to
// .wiggum/logs/activity.jsonl, per spec §6.
type ActivityRecord struct {
	Ts     string                 `json:"ts"`
	RunID  string                 `json:"run_id"`
	Event  string                 `json:"event"`
	TaskID string                 `json:"task_id,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// ActivityLogger appends ActivityRecords to a single jsonl file. It is
// independent of ConsoleLogger/FileLogger and of the human-facing log
// level. The scheduler records one entry per tick and per worker spawn,
// reap, and orphan reconciliation; lifecycle and pipeline events are not
// recorded here. Every record carries the same RunID, so events from one
// orchestrator run can be picked out of a jsonl file shared across restarts.
type ActivityLogger struct {
	path  string
	runID string
	mu    sync.Mutex
}

// NewActivityLogger opens (creating parent directories as needed) the
// activity log at <projectDir>/.wiggum/logs/activity.jsonl and assigns
// this run a fresh UUID.
func NewActivityLogger(projectDir string) (*ActivityLogger, error) {
	dir := filepath.Join(projectDir, ".wiggum", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}
	return &ActivityLogger{
		path:  filepath.Join(dir, "activity.jsonl"),
		runID: uuid.NewString(),
	}, nil
}

// RunID returns this logger's run identifier.
func (a *ActivityLogger) RunID() string { return a.runID }

// Record appends one event. taskID may be empty for run-scoped events
// (e.g. worker.spawned carries a task_id; scheduler ticks do not).
func (a *ActivityLogger) Record(event, taskID string, fields map[string]interface{}) error {
	rec := ActivityRecord{
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
		RunID:  a.runID,
		Event:  event,
		TaskID: taskID,
		Fields: fields,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal activity record: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append activity record: %w", err)
	}
	return f.Sync()
}
