package board

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/wiggum/internal/apperrors"
	"github.com/harrison/wiggum/internal/models"
)

func writeBoard(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "BOARD.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write board: %v", err)
	}
	return path
}

func TestBoard_Load(t *testing.T) {
	path := writeBoard(t, sampleBoard)
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(b.List()) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(b.List()))
	}
}

func TestBoard_Get_NotFound(t *testing.T) {
	b, err := Load(writeBoard(t, sampleBoard))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err = b.Get("AUTH-99")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBoard_Ready_RequiresDepsDone(t *testing.T) {
	b, err := Load(writeBoard(t, sampleBoard))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ready := b.Ready()
	var ids []string
	for _, t := range ready {
		ids = append(ids, t.ID)
	}
	found := false
	for _, id := range ids {
		if id == "AUTH-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected AUTH-1 ready (dep AUTH-0 is done), got %v", ids)
	}
}

func TestBoard_SetStatus_PersistsAndDetectsConcurrentEdit(t *testing.T) {
	path := writeBoard(t, sampleBoard)
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := b.SetStatus("AUTH-1", models.StatusInProgress); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := reloaded.Get("AUTH-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in-progress", got.Status)
	}

	// Simulate a concurrent writer changing the file after b's view was cached.
	stale, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := b.SetStatus("AUTH-1", models.StatusDone); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	err = stale.SetStatus("AUTH-1", models.StatusFailed)
	if !errors.Is(err, apperrors.ErrConcurrentEdit) {
		t.Errorf("expected ErrConcurrentEdit, got %v", err)
	}
}

func TestBoard_DetectCycles(t *testing.T) {
	cyclic := `- [ ] [AUTH-1] a
  Dependencies: AUTH-2

- [ ] [AUTH-2] b
  Dependencies: AUTH-1
`
	b, err := Load(writeBoard(t, cyclic))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := b.DetectCycles(); !errors.Is(err, apperrors.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestBoard_DetectCycles_AcyclicPasses(t *testing.T) {
	b, err := Load(writeBoard(t, sampleBoard))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := b.DetectCycles(); err != nil {
		t.Errorf("expected no cycle, got %v", err)
	}
}
