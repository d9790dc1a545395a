package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestActivityLogger_Record(t *testing.T) {
	dir := t.TempDir()
	al, err := NewActivityLogger(dir)
	if err != nil {
		t.Fatalf("NewActivityLogger() error = %v", err)
	}

	if err := al.Record("worker.spawned", "AUTH-1", map[string]interface{}{"kind": "main"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := al.Record("step.completed", "AUTH-1", map[string]interface{}{"step": "plan"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, ".wiggum", "logs", "activity.jsonl"))
	if err != nil {
		t.Fatalf("failed to open activity log: %v", err)
	}
	defer f.Close()

	var records []ActivityRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ActivityRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("failed to unmarshal record: %v", err)
		}
		records = append(records, rec)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Event != "worker.spawned" || records[0].TaskID != "AUTH-1" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Event != "step.completed" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	if records[0].RunID == "" || records[0].RunID != records[1].RunID {
		t.Errorf("expected both records to share a non-empty run id, got %q and %q", records[0].RunID, records[1].RunID)
	}
	if records[0].RunID != al.RunID() {
		t.Errorf("record run id %q does not match logger's RunID() %q", records[0].RunID, al.RunID())
	}
}
