// Package lifecycle manages a single worker's life: directory and worktree
// creation, driving its pipeline to completion or a blocking gate, watching
// for boundary violations, and reaping it back into the board's task status.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/wiggum/internal/board"
	"github.com/harrison/wiggum/internal/filelock"
	"github.com/harrison/wiggum/internal/models"
	"github.com/harrison/wiggum/internal/pipeline"
	"github.com/harrison/wiggum/internal/pool"
	"github.com/harrison/wiggum/internal/worktree"
)

// Clock is injected so tests can control epoch values instead of depending
// on wall-clock time.
type Clock func() time.Time

// Manager drives workers through their pipeline and reconciles outcomes
// back onto the board.
type Manager struct {
	ProjectDir string
	Board      *board.Board
	Pool       *pool.Pool
	Runner     *pipeline.Runner
	Worktree   *worktree.Manager
	BaseBranch string
	Now        Clock
}

// NewManager constructs a Manager with real wall-clock epochs and a git
// worktree rooted at projectDir.
func NewManager(projectDir string, b *board.Board, p *pool.Pool, r *pipeline.Runner) *Manager {
	return &Manager{
		ProjectDir: projectDir,
		Board:      b,
		Pool:       p,
		Runner:     r,
		Worktree:   worktree.NewManager(projectDir),
		Now:        time.Now,
	}
}

func workerName(task models.Task, kind models.WorkerKind, epoch int64) string {
	switch kind {
	case models.KindFix:
		return fmt.Sprintf("worker-%s-fix-%d", task.ID, epoch)
	case models.KindResolve:
		return fmt.Sprintf("worker-%s-resolve-%d", task.ID, epoch)
	default:
		return fmt.Sprintf("worker-%s-%d", task.ID, epoch)
	}
}

// Create makes a fresh worker directory for task: a git worktree pinned to
// BaseBranch at <dir>/workspace, a generated prd.md, a PID file, and a
// results/logs/reports skeleton, then registers the worker with the pool.
// kind selects the directory name suffix: worker-<TASK>-<epoch> for
// KindMain, worker-<TASK>-fix-<epoch> for KindFix,
// worker-<TASK>-resolve-<epoch> for KindResolve.
func (m *Manager) Create(ctx context.Context, task models.Task, kind models.WorkerKind) (string, error) {
	epoch := m.Now().Unix()
	name := workerName(task, kind, epoch)
	dir := filepath.Join(m.ProjectDir, "workers", name)

	for _, sub := range []string{"results", "logs", "reports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create worker directory: %w", err)
		}
	}

	workspace := filepath.Join(dir, "workspace")
	if err := m.Worktree.Create(ctx, workspace, name, m.BaseBranch); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, "prd.md"), renderPRD(task), 0644); err != nil {
		return "", fmt.Errorf("failed to write prd.md: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "pid"), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return "", fmt.Errorf("failed to record worker pid: %w", err)
	}

	appendWorkerLog(dir, "worker.created", task.ID)

	m.Pool.Add(models.PoolEntry{
		PID:       os.Getpid(),
		Kind:      kind,
		TaskID:    task.ID,
		StartedAt: m.Now(),
		Dir:       dir,
	})

	return dir, nil
}

// renderPRD renders task into the per-worker product-requirements file a
// sub-agent reads as its task brief.
func renderPRD(task models.Task) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", task.ID, task.Description)
	if len(task.Scope) > 0 {
		b.WriteString("\n## Scope\n")
		for _, s := range task.Scope {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(task.AcceptanceCriteria) > 0 {
		b.WriteString("\n## Acceptance Criteria\n")
		for _, c := range task.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return []byte(b.String())
}

// appendWorkerLog appends one phase-level structured event to
// <dir>/worker.log. Failure to write is not fatal to the caller; the
// worker log is diagnostic, not the source of truth for pipeline state.
func appendWorkerLog(dir, event, taskID string) {
	line := fmt.Sprintf("%s event=%s task=%s\n", time.Now().UTC().Format(time.RFC3339Nano), event, taskID)
	f, err := os.OpenFile(filepath.Join(dir, "worker.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(line)
}

// Run drives task's pipeline forward from wherever Resume says to start,
// one step at a time, stopping at the first gate that isn't PASS or SKIP.
// It returns the final committed step result.
func (m *Manager) Run(ctx context.Context, workerDir string, task models.Task) (*models.StepResult, error) {
	for {
		stepID, err := m.Runner.Resume(workerDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resume pipeline: %w", err)
		}
		if stepID == "" {
			return m.Runner.LastResult(workerDir, lastStepID(m.Runner))
		}

		result, err := m.Runner.RunStep(ctx, workerDir, task, stepID)
		if err != nil {
			return nil, err
		}

		switch result.Gate {
		case models.GatePass, models.GateSkip:
			continue
		default:
			return result, nil
		}
	}
}

func lastStepID(r *pipeline.Runner) string {
	if len(r.Config.Steps) == 0 {
		return ""
	}
	return r.Config.Steps[len(r.Config.Steps)-1].ID
}

// ViolationMonitor inspects the shared project checkout — not any worker's
// own isolated worktree — for uncommitted changes, which can only mean an
// agent escaped its worktree and wrote into the main tree directly.
type ViolationMonitor struct {
	Worktree   *worktree.Manager
	ProjectDir string
}

// Check runs git status against the shared project checkout and flags any
// dirty path outside the orchestrator's own .wiggum and workers
// directories. A non-empty result writes workerDir/violation_flag.txt,
// the sentinel ExitAndReap consults to force a failed outcome.
func (v ViolationMonitor) Check(ctx context.Context, workerDir string) ([]string, error) {
	dirty, err := v.Worktree.DirtyPaths(ctx, v.ProjectDir)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, p := range dirty {
		if strings.HasPrefix(p, ".wiggum"+string(filepath.Separator)) || strings.HasPrefix(p, "workers"+string(filepath.Separator)) {
			continue
		}
		violations = append(violations, p)
	}

	if len(violations) > 0 {
		if err := filelock.AtomicWrite(filepath.Join(workerDir, "violation_flag.txt"), []byte(strings.Join(violations, "\n")+"\n")); err != nil {
			return violations, fmt.Errorf("failed to write violation sentinel: %w", err)
		}
	}
	return violations, nil
}

// hasSentinel reports whether workerDir carries a violation sentinel from
// a prior Check.
func hasSentinel(workerDir string) bool {
	_, err := os.Stat(filepath.Join(workerDir, "violation_flag.txt"))
	return err == nil
}

// gitState is the needs_fix/needs_resolve marker ExitAndReap writes to
// git-state.json in a reaped worker's directory. No package in this
// module reads it back.
type gitState struct {
	NeedsFix     bool `json:"needs_fix"`
	NeedsResolve bool `json:"needs_resolve"`
}

// ExitAndReap removes dir's worker from the pool, tears down its worktree,
// and updates the board to reflect the task's final outcome, derived from
// the pipeline's last gate and whether a violation sentinel is present.
func (m *Manager) ExitAndReap(ctx context.Context, workerDir string, task models.Task, final *models.StepResult) (models.WorkerOutcome, error) {
	defer m.Pool.Remove(workerDir)
	defer appendWorkerLog(workerDir, "worker.reaped", task.ID)

	var outcome models.WorkerOutcome
	var status string
	state := gitState{}

	switch {
	case hasSentinel(workerDir):
		outcome, status = models.OutcomeFailure, models.StatusFailed
	case final == nil:
		outcome, status = models.OutcomeFailure, models.StatusFailed
	case final.Gate == models.GatePass:
		outcome, status = models.OutcomeSuccess, models.StatusDone
	case final.Gate == models.GateFix:
		outcome, status, state.NeedsFix = models.OutcomeRetry, models.StatusInProgress, true
	case final.Gate == models.GateStop:
		outcome, status = models.OutcomeFailure, models.StatusBlocked
	default:
		outcome, status = models.OutcomeFailure, models.StatusFailed
	}

	stateJSON, err := json.Marshal(state)
	if err == nil {
		_ = filelock.AtomicWrite(filepath.Join(workerDir, "git-state.json"), stateJSON)
	}

	workspace := filepath.Join(workerDir, "workspace")
	branch := filepath.Base(workerDir)
	if err := m.Worktree.Remove(ctx, workspace, branch); err != nil {
		return outcome, fmt.Errorf("failed to remove worktree for %s: %w", task.ID, err)
	}

	if err := m.Board.SetStatus(task.ID, status); err != nil {
		return outcome, fmt.Errorf("failed to update board after reap: %w", err)
	}
	return outcome, nil
}

// FixFollowUp spawns a fix worker for task after its main worker gated FIX,
// resuming the same pipeline in a fresh directory so the fix attempt has
// its own result history and epoch sequence.
func (m *Manager) FixFollowUp(ctx context.Context, task models.Task) (string, *models.StepResult, error) {
	dir, err := m.Create(ctx, task, models.KindFix)
	if err != nil {
		return "", nil, err
	}
	result, err := m.Run(ctx, dir, task)
	return dir, result, err
}
