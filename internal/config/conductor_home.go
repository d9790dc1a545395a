package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetWiggumHome returns the orchestrator's state directory, resolved
// against the current working directory as project root.
// Priority: WIGGUM_HOME env var, else <project-root>/.wiggum.
// The directory is created if missing.
func GetWiggumHome() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return GetWiggumHomeWithRoot(cwd)
}

// GetWiggumHomeWithRoot is GetWiggumHome with an explicit project root,
// used by tests and by callers that have already resolved the root.
func GetWiggumHomeWithRoot(projectRoot string) (string, error) {
	if home := os.Getenv("WIGGUM_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create wiggum home directory: %w", err)
		}
		return home, nil
	}

	if projectRoot == "" {
		return "", fmt.Errorf("no WIGGUM_HOME set and no project root given")
	}

	home := filepath.Join(projectRoot, ".wiggum")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create wiggum home directory: %w", err)
	}
	return home, nil
}

// FindProjectRoot walks up from the current directory looking for a
// .wiggum-root marker file or a go.mod, falling back to the cwd.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".wiggum-root")); err == nil {
			return current, nil
		}
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return cwd, nil
}

// GetHistoryDBPathWithRoot returns the absolute path to the history
// store's sqlite database: <wiggum-home>/history.db.
func GetHistoryDBPathWithRoot(projectRoot string) (string, error) {
	home, err := GetWiggumHomeWithRoot(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}
