package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/harrison/wiggum/internal/models"
	"github.com/harrison/wiggum/internal/pipeline"
)

// Invoker dispatches one pipeline step to a sub-agent CLI process and
// translates its output into a models.StepResult. It implements
// pipeline.AgentInvoker.
type Invoker struct {
	Registry *Registry
	Timeout  time.Duration
}

// NewInvoker constructs an Invoker with the given registry and a default
// per-step timeout used when a step doesn't specify one.
func NewInvoker(registry *Registry, defaultTimeout time.Duration) *Invoker {
	return &Invoker{Registry: registry, Timeout: defaultTimeout}
}

// rawOutput is the JSON envelope a sub-agent prints as its output.
// InvokeStep parses it from the process's combined stdout and stderr; no
// results file written by the sub-agent is read.
type rawOutput struct {
	GateResult string                 `json:"gate_result"`
	Outputs    map[string]interface{} `json:"outputs"`
	Errors     []string               `json:"errors"`
}

// InvokeStep dispatches step for task inside workerDir: it sets the
// contract environment variables, runs the registered agent binary with a
// per-step timeout, and parses the result from the JSON envelope in the
// process's combined output.
func (inv *Invoker) InvokeStep(ctx context.Context, workerDir string, task models.Task, step pipeline.StepConfig) (*models.StepResult, error) {
	timeout := inv.Timeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	descriptor := inv.Registry.Resolve(step.Agent)
	epoch := time.Now().UnixNano()

	cmd := exec.CommandContext(ctx, descriptor.Name, inv.buildArgs(descriptor, step)...)
	cmd.Dir = workerDir
	cmd.Env = inv.cleanEnv(workerDir, task, step, epoch)

	output, runErr := cmd.CombinedOutput()

	result := &models.StepResult{StepID: step.ID, Epoch: epoch}

	parsed, parseErr := parseOutput(output)
	switch {
	case parseErr == nil:
		result.Gate = models.GateResult(parsed.GateResult)
		result.Outputs = parsed.Outputs
		result.Errors = parsed.Errors
	case runErr != nil:
		result.Gate = models.GateFail
		result.Errors = []string{fmt.Sprintf("agent invocation failed: %v", runErr)}
	default:
		result.Gate = models.GateFail
		result.Errors = []string{fmt.Sprintf("could not parse agent output: %v", parseErr)}
	}

	if ctx.Err() != nil {
		result.Gate = models.GateFail
		result.Errors = append(result.Errors, fmt.Sprintf("step timed out: %v", ctx.Err()))
	}

	return result, nil
}

// buildArgs constructs the sub-agent's command line: print mode, a
// disabled-hooks settings blob, JSON output, and the step's prompt,
// preceded by the descriptor's own dispatch args (e.g. --model).
func (inv *Invoker) buildArgs(d Descriptor, step pipeline.StepConfig) []string {
	args := append([]string{}, d.Args...)
	args = append(args,
		"-p", step.Prompt,
		"--dangerously-skip-permissions",
		"--settings", `{"disableAllHooks": true}`,
		"--output-format", "json",
	)
	if step.ReadOnly {
		args = append(args, "--permission-mode", "plan")
	}
	return args
}

// cleanEnv builds the sub-agent's environment: the step invocation
// contract variables plus a minimal passthrough of PATH/HOME, rather than
// the orchestrator's full environment, so a sub-agent can't accidentally
// read unrelated secrets from the parent process.
func (inv *Invoker) cleanEnv(workerDir string, task models.Task, step pipeline.StepConfig, epoch int64) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"WIGGUM_STEP_ID=" + step.ID,
		"WIGGUM_TASK_ID=" + task.ID,
		"WIGGUM_WORKER_DIR=" + workerDir,
		fmt.Sprintf("WIGGUM_STEP_EPOCH=%d", epoch),
	}
	if step.ReadOnly {
		env = append(env, "WIGGUM_STEP_READONLY=1")
	}
	return env
}

func parseOutput(output []byte) (*rawOutput, error) {
	var out rawOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, err
	}
	if out.GateResult == "" {
		return nil, fmt.Errorf("agent output missing gate_result field")
	}
	return &out, nil
}

// StepConfigPath returns where InvokeStep's sub-agent should find the
// step configuration the pipeline runner already wrote via Runner.prepare.
func StepConfigPath(workerDir string) string {
	return filepath.Join(workerDir, "step-config.json")
}
