package board

import (
	"testing"

	"github.com/harrison/wiggum/internal/models"
)

const sampleBoard = `# Board

- [ ] [AUTH-1] Add login endpoint
  Priority: HIGH
  Dependencies: AUTH-0
  Scope: internal/auth/**

- [x] [AUTH-0] Scaffold auth package
  Priority: MEDIUM

- [~] [AUTH-2] Add logout endpoint
  Priority: LOW
`

func TestParseMarkdown(t *testing.T) {
	tasks, err := ParseMarkdown([]byte(sampleBoard))
	if err != nil {
		t.Fatalf("ParseMarkdown() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	byID := map[string]models.Task{}
	for _, tk := range tasks {
		byID[tk.ID] = tk
	}

	auth1 := byID["AUTH-1"]
	if auth1.Status != models.StatusPending {
		t.Errorf("AUTH-1 status = %q, want pending", auth1.Status)
	}
	if auth1.Priority != models.PriorityHigh {
		t.Errorf("AUTH-1 priority = %v, want HIGH", auth1.Priority)
	}
	if len(auth1.Dependencies) != 1 || auth1.Dependencies[0] != "AUTH-0" {
		t.Errorf("AUTH-1 dependencies = %v, want [AUTH-0]", auth1.Dependencies)
	}

	auth0 := byID["AUTH-0"]
	if auth0.Status != models.StatusDone {
		t.Errorf("AUTH-0 status = %q, want done", auth0.Status)
	}

	auth2 := byID["AUTH-2"]
	if auth2.Status != models.StatusInProgress {
		t.Errorf("AUTH-2 status = %q, want in-progress", auth2.Status)
	}
}

func TestRenderMarkdown_RoundTrip(t *testing.T) {
	tasks, err := ParseMarkdown([]byte(sampleBoard))
	if err != nil {
		t.Fatalf("ParseMarkdown() error = %v", err)
	}

	rendered := RenderMarkdown(tasks)
	reparsed, err := ParseMarkdown(rendered)
	if err != nil {
		t.Fatalf("ParseMarkdown(rendered) error = %v", err)
	}
	if len(reparsed) != len(tasks) {
		t.Fatalf("round trip lost tasks: got %d, want %d", len(reparsed), len(tasks))
	}
}

func TestParseMarkdown_RejectsBadIdentifier(t *testing.T) {
	tasks, err := ParseMarkdown([]byte("- [ ] [bad-id] something\n"))
	if err != nil {
		t.Fatalf("unexpected error for unmatched head pattern: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected bad identifier to be skipped, got %d tasks", len(tasks))
	}
}
