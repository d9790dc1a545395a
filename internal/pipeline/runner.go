package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/wiggum/internal/filelock"
	"github.com/harrison/wiggum/internal/models"
)

// AgentInvoker invokes one pipeline step's sub-agent inside workerDir and
// returns its gated result. Implemented by internal/agent.Invoker;
// abstracted here so the runner's step algorithm is testable without
// spawning a real subprocess.
type AgentInvoker interface {
	InvokeStep(ctx context.Context, workerDir string, task models.Task, step StepConfig) (*models.StepResult, error)
}

// Runner executes a Config's steps against a single worker directory,
// one task at a time.
type Runner struct {
	Config  *Config
	Invoker AgentInvoker
}

// NewRunner constructs a Runner.
func NewRunner(cfg *Config, invoker AgentInvoker) *Runner {
	return &Runner{Config: cfg, Invoker: invoker}
}

// RunStep executes the six-stage step algorithm for one step:
//  1. dependency-check: every step named in DependsOn must have a prior PASS.
//  2. gate-check: a prior SKIP or STOP on this same step short-circuits re-invocation.
//  3. prepare: write step-config.json for the sub-agent to read.
//  4. invoke: call the AgentInvoker.
//  5. commit: atomically persist the result under results/<step>-<epoch>.json.
//  6. classify: return the committed result so the caller (lifecycle) can react to its gate.
func (r *Runner) RunStep(ctx context.Context, workerDir string, task models.Task, stepID string) (*models.StepResult, error) {
	step, ok := r.Config.StepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline step %q", stepID)
	}

	if err := r.checkDependencies(workerDir, step); err != nil {
		return nil, err
	}

	if prior, err := r.LastResult(workerDir, stepID); err == nil && prior != nil {
		if prior.Gate == models.GateSkip || prior.Gate == models.GateStop {
			return prior, nil
		}
	}

	if err := r.prepare(workerDir, task, step); err != nil {
		return nil, err
	}

	result, err := r.Invoker.InvokeStep(ctx, workerDir, task, step)
	if err != nil {
		return nil, err
	}
	if !result.Gate.Valid() {
		return nil, fmt.Errorf("step %q returned invalid gate %q", stepID, result.Gate)
	}

	if err := r.commit(workerDir, *result); err != nil {
		return nil, err
	}

	return result, nil
}

// checkDependencies ensures every dependency step's latest recorded result
// gated PASS before this step is allowed to run.
func (r *Runner) checkDependencies(workerDir string, step StepConfig) error {
	for _, dep := range step.DependsOn {
		res, err := r.LastResult(workerDir, dep)
		if err != nil {
			return fmt.Errorf("step %q: failed to check dependency %q: %w", step.ID, dep, err)
		}
		if res == nil {
			return fmt.Errorf("step %q: dependency %q has not run yet", step.ID, dep)
		}
		if res.Gate != models.GatePass {
			return fmt.Errorf("step %q: dependency %q gated %s, not PASS", step.ID, dep, res.Gate)
		}
	}
	return nil
}

// prepare writes the step's config so the sub-agent (invoked out-of-process)
// can read its task, prompt, and read-only flag without inheriting them
// solely through environment variables.
func (r *Runner) prepare(workerDir string, task models.Task, step StepConfig) error {
	payload := map[string]interface{}{
		"step_id":   step.ID,
		"task_id":   task.ID,
		"prompt":    step.Prompt,
		"readonly":  step.ReadOnly,
		"agent":     step.Agent,
		"timeout_s": step.TimeoutSeconds,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal step config: %w", err)
	}
	return filelock.AtomicWrite(filepath.Join(workerDir, "step-config.json"), data)
}

// commit persists one step's result under results/<step-id>-<epoch>.json.
// Using the epoch in the filename means re-running a step after a FIX gate
// never overwrites the history a fix-up was triggered by.
func (r *Runner) commit(workerDir string, result models.StepResult) error {
	resultsDir := filepath.Join(workerDir, "results")
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}

	name := fmt.Sprintf("%s-%d.json", result.StepID, result.Epoch)
	return filelock.AtomicWrite(filepath.Join(resultsDir, name), data)
}

// LastResult returns the most recently committed result for stepID, or nil
// if the step has never run. Used both by dependency checking and by
// Resume to figure out where a restarted orchestrator should pick up.
func (r *Runner) LastResult(workerDir, stepID string) (*models.StepResult, error) {
	resultsDir := filepath.Join(workerDir, "results")
	entries, err := os.ReadDir(resultsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list results directory: %w", err)
	}

	prefix := stepID + "-"
	var bestEpoch int64 = -1
	var bestName string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		epochStr := strings.TrimSuffix(strings.TrimPrefix(e.Name(), prefix), ".json")
		epoch, err := strconv.ParseInt(epochStr, 10, 64)
		if err != nil {
			continue
		}
		if epoch > bestEpoch {
			bestEpoch = epoch
			bestName = e.Name()
		}
	}
	if bestName == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(resultsDir, bestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read step result: %w", err)
	}
	var result models.StepResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse step result %q: %w", bestName, err)
	}
	return &result, nil
}

// Resume scans workerDir's results for each step in the pipeline, in
// order, and returns the ID of the first step that either has never run
// or did not gate PASS or SKIP. Returns "" if every step has a PASS or
// SKIP on record, meaning the pipeline is complete.
func (r *Runner) Resume(workerDir string) (string, error) {
	for _, step := range r.Config.Steps {
		res, err := r.LastResult(workerDir, step.ID)
		if err != nil {
			return "", err
		}
		if res == nil || (res.Gate != models.GatePass && res.Gate != models.GateSkip) {
			return step.ID, nil
		}
	}
	return "", nil
}

// AllResults returns every committed step result for workerDir, sorted by
// step order in the pipeline then by epoch, for diagnostics.
func (r *Runner) AllResults(workerDir string) ([]models.StepResult, error) {
	var all []models.StepResult
	for _, step := range r.Config.Steps {
		resultsDir := filepath.Join(workerDir, "results")
		entries, err := os.ReadDir(resultsDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		prefix := step.ID + "-"
		var matches []string
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), prefix) {
				matches = append(matches, e.Name())
			}
		}
		// Same prefix and suffix, so a shorter name has the smaller epoch.
		sort.Slice(matches, func(i, j int) bool {
			if len(matches[i]) != len(matches[j]) {
				return len(matches[i]) < len(matches[j])
			}
			return matches[i] < matches[j]
		})
		for _, name := range matches {
			data, err := os.ReadFile(filepath.Join(resultsDir, name))
			if err != nil {
				return nil, err
			}
			var res models.StepResult
			if err := json.Unmarshal(data, &res); err != nil {
				return nil, err
			}
			all = append(all, res)
		}
	}
	return all, nil
}
