// Package claims predicts which files a task will touch, so the scheduler
// can avoid running two tasks with overlapping file scope at the same time.
package claims

import (
	"path/filepath"
	"strings"

	"github.com/harrison/wiggum/internal/fileutil"
	"github.com/harrison/wiggum/internal/models"
)

// Claim is the predicted set of paths one task will write to.
type Claim struct {
	TaskID string
	Paths  []string
}

// Predictor predicts a task's file claim before it runs. Pluggable so a
// more precise predictor (e.g. one backed by the history store's observed
// diffs) can replace the default scope-based one without touching callers.
type Predictor interface {
	Predict(projectDir string, task models.Task) (Claim, error)
}

// ScopePredictor expands a task's declared Scope globs against the project
// tree and claims every file under them. A task with no declared scope
// claims nothing, and so never conflicts.
type ScopePredictor struct{}

// Predict implements Predictor.
func (ScopePredictor) Predict(projectDir string, task models.Task) (Claim, error) {
	claim := Claim{TaskID: task.ID}

	for _, scope := range task.Scope {
		dir, pattern := splitScopeGlob(scope)
		absDir := filepath.Join(projectDir, dir)

		result, err := fileutil.ScanDirectory(absDir, fileutil.ScanOptions{
			Pattern:     pattern,
			Recursive:   true,
			ExcludeDirs: []string{".git", ".wiggum", "node_modules"},
		})
		if err != nil {
			// A scope that names a not-yet-created directory is not an
			// error: the task may be about to create it.
			continue
		}
		claim.Paths = append(claim.Paths, result.Files...)
	}

	return claim, nil
}

// splitScopeGlob strips a trailing "/**" or "/*" from a scope entry like
// "internal/auth/**" and returns the rest as the directory to scan; the
// returned pattern is always empty, so every file under dir matches. An
// empty remainder means ".". An entry without such a suffix is returned
// unchanged as dir, so a scope naming a single file claims nothing.
func splitScopeGlob(scope string) (dir, pattern string) {
	scope = strings.TrimSuffix(scope, "/**")
	scope = strings.TrimSuffix(scope, "/*")
	if scope == "" {
		return ".", ""
	}
	return scope, ""
}

// Overlaps reports whether two claims share any path.
func Overlaps(a, b Claim) bool {
	if a.TaskID == b.TaskID {
		return false
	}
	seen := make(map[string]bool, len(a.Paths))
	for _, p := range a.Paths {
		seen[p] = true
	}
	for _, p := range b.Paths {
		if seen[p] {
			return true
		}
	}
	return false
}

// Conflict is a pair of task IDs whose predicted claims overlap.
type Conflict struct {
	TaskA, TaskB string
}

// DetectConflicts returns every pair of claims in active whose paths overlap.
func DetectConflicts(active []Claim) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if Overlaps(active[i], active[j]) {
				conflicts = append(conflicts, Conflict{TaskA: active[i].TaskID, TaskB: active[j].TaskID})
			}
		}
	}
	return conflicts
}
