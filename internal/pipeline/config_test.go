package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, cfg Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg := Config{Steps: []StepConfig{
		{ID: "plan", Agent: "planner"},
		{ID: "implement", Agent: "coder", DependsOn: []string{"plan"}},
	}}
	path := writeConfig(t, cfg)

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(loaded.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(loaded.Steps))
	}
}

func TestValidate_RejectsDuplicateID(t *testing.T) {
	cfg := Config{Steps: []StepConfig{{ID: "plan"}, {ID: "plan"}}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate step id")
	}
}

func TestValidate_RejectsForwardDependency(t *testing.T) {
	cfg := Config{Steps: []StepConfig{
		{ID: "plan", DependsOn: []string{"implement"}},
		{ID: "implement"},
	}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for forward dependency")
	}
}

func TestStepByID(t *testing.T) {
	cfg := Config{Steps: []StepConfig{{ID: "plan", Agent: "planner"}}}
	step, ok := cfg.StepByID("plan")
	if !ok || step.Agent != "planner" {
		t.Errorf("StepByID() = %+v, ok=%v", step, ok)
	}
	if _, ok := cfg.StepByID("missing"); ok {
		t.Error("expected StepByID(missing) to report not found")
	}
}
