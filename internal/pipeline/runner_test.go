package pipeline

import (
	"context"
	"testing"

	"github.com/harrison/wiggum/internal/models"
)

type fakeInvoker struct {
	gate    models.GateResult
	epoch   int64
	calls   int
}

func (f *fakeInvoker) InvokeStep(ctx context.Context, workerDir string, task models.Task, step StepConfig) (*models.StepResult, error) {
	f.calls++
	f.epoch++
	return &models.StepResult{StepID: step.ID, Epoch: f.epoch, Gate: f.gate}, nil
}

func testConfig() *Config {
	return &Config{Steps: []StepConfig{
		{ID: "plan", Agent: "planner"},
		{ID: "implement", Agent: "coder", DependsOn: []string{"plan"}},
	}}
}

func TestRunner_RunStep_CommitsResult(t *testing.T) {
	cfg := testConfig()
	invoker := &fakeInvoker{gate: models.GatePass}
	r := NewRunner(cfg, invoker)
	dir := t.TempDir()

	result, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "plan")
	if err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	if result.Gate != models.GatePass {
		t.Errorf("Gate = %q, want PASS", result.Gate)
	}

	last, err := r.LastResult(dir, "plan")
	if err != nil {
		t.Fatalf("LastResult() error = %v", err)
	}
	if last == nil || last.Gate != models.GatePass {
		t.Errorf("LastResult() = %+v, want committed PASS", last)
	}
}

func TestRunner_RunStep_BlocksOnUnmetDependency(t *testing.T) {
	cfg := testConfig()
	invoker := &fakeInvoker{gate: models.GatePass}
	r := NewRunner(cfg, invoker)
	dir := t.TempDir()

	_, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "implement")
	if err == nil {
		t.Error("expected error running implement before plan has passed")
	}
	if invoker.calls != 0 {
		t.Errorf("expected invoker not called, got %d calls", invoker.calls)
	}
}

func TestRunner_RunStep_SkipGateShortCircuitsRerun(t *testing.T) {
	cfg := &Config{Steps: []StepConfig{{ID: "plan", Agent: "planner"}}}
	invoker := &fakeInvoker{gate: models.GateSkip}
	r := NewRunner(cfg, invoker)
	dir := t.TempDir()

	if _, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "plan"); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	if _, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "plan"); err != nil {
		t.Fatalf("second RunStep() error = %v", err)
	}
	if invoker.calls != 1 {
		t.Errorf("expected invoker called once (SKIP short-circuits rerun), got %d", invoker.calls)
	}
}

func TestRunner_Resume(t *testing.T) {
	cfg := testConfig()
	invoker := &fakeInvoker{gate: models.GatePass}
	r := NewRunner(cfg, invoker)
	dir := t.TempDir()

	next, err := r.Resume(dir)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if next != "plan" {
		t.Errorf("Resume() = %q, want plan", next)
	}

	if _, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "plan"); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}

	next, err = r.Resume(dir)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if next != "implement" {
		t.Errorf("Resume() = %q, want implement", next)
	}

	if _, err := r.RunStep(context.Background(), dir, models.Task{ID: "AUTH-1"}, "implement"); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	next, err = r.Resume(dir)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if next != "" {
		t.Errorf("Resume() = %q, want empty string (complete)", next)
	}
}

func TestRunner_RunStep_InvalidGateRejected(t *testing.T) {
	cfg := &Config{Steps: []StepConfig{{ID: "plan"}}}
	invoker := &fakeInvoker{gate: models.GateResult("MAYBE")}
	r := NewRunner(cfg, invoker)

	if _, err := r.RunStep(context.Background(), t.TempDir(), models.Task{ID: "AUTH-1"}, "plan"); err == nil {
		t.Error("expected error for invalid gate result")
	}
}
