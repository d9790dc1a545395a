package agent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/harrison/wiggum/internal/models"
	"github.com/harrison/wiggum/internal/pipeline"
)

// writeFakeAgent writes an executable shell script that echoes a fixed
// JSON gate result, standing in for a real sub-agent CLI in tests.
func writeFakeAgent(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake agent script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-agent.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake agent script: %v", err)
	}
	return path
}

func TestInvoker_InvokeStep_ParsesPassingGate(t *testing.T) {
	script := writeFakeAgent(t, `echo '{"gate_result":"PASS","outputs":{"summary":"done"}}'`)
	registry := NewRegistry()
	registry.SetFallback(Descriptor{Name: script})
	inv := NewInvoker(registry, 5*time.Second)

	workerDir := t.TempDir()
	task := models.Task{ID: "AUTH-1"}
	step := pipeline.StepConfig{ID: "plan", Prompt: "do the thing"}

	result, err := inv.InvokeStep(context.Background(), workerDir, task, step)
	if err != nil {
		t.Fatalf("InvokeStep() error = %v", err)
	}
	if result.Gate != models.GatePass {
		t.Errorf("Gate = %q, want PASS", result.Gate)
	}
	if result.Outputs["summary"] != "done" {
		t.Errorf("Outputs[summary] = %v, want done", result.Outputs["summary"])
	}
	if result.StepID != "plan" {
		t.Errorf("StepID = %q, want plan", result.StepID)
	}
}

func TestInvoker_InvokeStep_MalformedOutputFails(t *testing.T) {
	script := writeFakeAgent(t, `echo 'not json'`)
	registry := NewRegistry()
	registry.SetFallback(Descriptor{Name: script})
	inv := NewInvoker(registry, 5*time.Second)

	result, err := inv.InvokeStep(context.Background(), t.TempDir(), models.Task{ID: "AUTH-1"}, pipeline.StepConfig{ID: "plan"})
	if err != nil {
		t.Fatalf("InvokeStep() error = %v", err)
	}
	if result.Gate != models.GateFail {
		t.Errorf("Gate = %q, want FAIL on malformed output", result.Gate)
	}
	if len(result.Errors) == 0 {
		t.Error("expected non-empty Errors on malformed output")
	}
}

func TestInvoker_InvokeStep_NonZeroExitFails(t *testing.T) {
	script := writeFakeAgent(t, `exit 1`)
	registry := NewRegistry()
	registry.SetFallback(Descriptor{Name: script})
	inv := NewInvoker(registry, 5*time.Second)

	result, err := inv.InvokeStep(context.Background(), t.TempDir(), models.Task{ID: "AUTH-1"}, pipeline.StepConfig{ID: "plan"})
	if err != nil {
		t.Fatalf("InvokeStep() error = %v", err)
	}
	if result.Gate != models.GateFail {
		t.Errorf("Gate = %q, want FAIL on nonzero exit with no output", result.Gate)
	}
}

func TestInvoker_InvokeStep_UsesStepTimeout(t *testing.T) {
	script := writeFakeAgent(t, `sleep 2`)
	registry := NewRegistry()
	registry.SetFallback(Descriptor{Name: script})
	inv := NewInvoker(registry, time.Minute)

	step := pipeline.StepConfig{ID: "plan", TimeoutSeconds: 1}
	start := time.Now()
	result, err := inv.InvokeStep(context.Background(), t.TempDir(), models.Task{ID: "AUTH-1"}, step)
	if err != nil {
		t.Fatalf("InvokeStep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("InvokeStep() took %v, want to respect 1s step timeout", elapsed)
	}
	if result.Gate != models.GateFail {
		t.Errorf("Gate = %q, want FAIL on timeout", result.Gate)
	}
}

func TestInvoker_ResolvesRegisteredAgentByStepName(t *testing.T) {
	passScript := writeFakeAgent(t, `echo '{"gate_result":"PASS"}'`)
	registry := NewRegistry()
	registry.Register("reviewer", Descriptor{Name: passScript})
	inv := NewInvoker(registry, 5*time.Second)

	step := pipeline.StepConfig{ID: "review", Agent: "reviewer"}
	result, err := inv.InvokeStep(context.Background(), t.TempDir(), models.Task{ID: "AUTH-1"}, step)
	if err != nil {
		t.Fatalf("InvokeStep() error = %v", err)
	}
	if result.Gate != models.GatePass {
		t.Errorf("Gate = %q, want PASS via registered agent", result.Gate)
	}
}
