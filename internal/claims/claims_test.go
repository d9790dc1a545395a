package claims

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/wiggum/internal/models"
)

func TestScopePredictor_Predict(t *testing.T) {
	dir := t.TempDir()
	authDir := filepath.Join(dir, "internal", "auth")
	if err := os.MkdirAll(authDir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(authDir, "login.go"), []byte("package auth"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	task := models.Task{ID: "AUTH-1", Scope: []string{"internal/auth/**"}}
	claim, err := ScopePredictor{}.Predict(dir, task)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(claim.Paths) != 1 {
		t.Fatalf("expected 1 claimed path, got %d: %v", len(claim.Paths), claim.Paths)
	}
}

func TestScopePredictor_NoScopeClaimsNothing(t *testing.T) {
	task := models.Task{ID: "AUTH-1"}
	claim, err := ScopePredictor{}.Predict(t.TempDir(), task)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(claim.Paths) != 0 {
		t.Errorf("expected no claimed paths, got %v", claim.Paths)
	}
}

func TestOverlaps(t *testing.T) {
	a := Claim{TaskID: "A", Paths: []string{"x.go", "y.go"}}
	b := Claim{TaskID: "B", Paths: []string{"y.go", "z.go"}}
	c := Claim{TaskID: "C", Paths: []string{"q.go"}}

	if !Overlaps(a, b) {
		t.Error("expected a and b to overlap on y.go")
	}
	if Overlaps(a, c) {
		t.Error("expected a and c not to overlap")
	}
	if Overlaps(a, a) {
		t.Error("a claim never conflicts with itself")
	}
}

func TestDetectConflicts(t *testing.T) {
	claims := []Claim{
		{TaskID: "A", Paths: []string{"x.go"}},
		{TaskID: "B", Paths: []string{"x.go"}},
		{TaskID: "C", Paths: []string{"z.go"}},
	}
	conflicts := DetectConflicts(claims)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
	}
	if conflicts[0].TaskA != "A" || conflicts[0].TaskB != "B" {
		t.Errorf("unexpected conflict pair: %v", conflicts[0])
	}
}
