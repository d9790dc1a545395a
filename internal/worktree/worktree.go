// Package worktree isolates a worker's writes from the shared project
// checkout using a real git worktree, pinned to the base revision, per
// worker directory.
package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes one git command and returns its combined output.
// The default Runner shells out via os/exec; tests inject a fake.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs git via exec.CommandContext.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

// Manager creates and removes per-worker git worktrees against repoRoot.
type Manager struct {
	RepoRoot string
	Runner   CommandRunner
}

// NewManager returns a Manager using the real git CLI.
func NewManager(repoRoot string) *Manager {
	return &Manager{RepoRoot: repoRoot, Runner: ExecRunner{}}
}

// Create adds a worktree at workspacePath on a new branch cut from base,
// isolating the worker's writes from repoRoot's own checkout.
func (m *Manager) Create(ctx context.Context, workspacePath, branch, base string) error {
	if base == "" {
		base = "HEAD"
	}
	_, err := m.Runner.Run(ctx, m.RepoRoot, "worktree", "add", "-b", branch, workspacePath, base)
	if err != nil {
		return fmt.Errorf("failed to create worktree %s: %w", workspacePath, err)
	}
	return nil
}

// Remove force-removes the worktree at workspacePath and deletes its
// branch, reclaiming the isolated checkout once a worker is reaped.
func (m *Manager) Remove(ctx context.Context, workspacePath, branch string) error {
	if _, err := m.Runner.Run(ctx, m.RepoRoot, "worktree", "remove", "--force", workspacePath); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", workspacePath, err)
	}
	if _, err := m.Runner.Run(ctx, m.RepoRoot, "branch", "-D", branch); err != nil {
		return fmt.Errorf("failed to delete worktree branch %s: %w", branch, err)
	}
	return nil
}

// IsClean reports whether dir's git status is free of uncommitted changes.
func (m *Manager) IsClean(ctx context.Context, dir string) (bool, error) {
	out, err := m.Runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check git status: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

// DirtyPaths returns the paths git status --porcelain reports as changed
// in dir, relative to dir.
func (m *Manager) DirtyPaths(ctx context.Context, dir string) ([]string, error) {
	out, err := m.Runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to check git status: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		paths = append(paths, strings.TrimSpace(line[3:]))
	}
	return paths, nil
}
