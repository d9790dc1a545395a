package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrison/wiggum/internal/config"
)

// NewInitCommand scaffolds a new project's .wiggum/ state directory: a
// default config.yaml, a default three-step pipeline.json (plan,
// implement, review), and a starter BOARD.md if
// none already exists.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold .wiggum/ configuration and a starter board",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindProjectRoot()
			if err != nil {
				return err
			}
			home, err := config.GetWiggumHomeWithRoot(root)
			if err != nil {
				return err
			}

			configPath := filepath.Join(home, "config.yaml")
			if err := writeIfAbsent(configPath, force, func() ([]byte, error) {
				return yaml.Marshal(config.DefaultConfig())
			}); err != nil {
				return err
			}

			pipelinePath := filepath.Join(home, "pipeline.json")
			if err := writeIfAbsent(pipelinePath, force, func() ([]byte, error) {
				return []byte(defaultPipelineJSON), nil
			}); err != nil {
				return err
			}

			boardPath := filepath.Join(root, "BOARD.md")
			if err := writeIfAbsent(boardPath, force, func() ([]byte, error) {
				return []byte(defaultBoardMarkdown), nil
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized wiggum project at %s\n", root)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func writeIfAbsent(path string, force bool, content func() ([]byte, error)) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	data, err := content()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

const defaultPipelineJSON = `{
  "steps": [
    {"id": "plan", "agent": "planner", "prompt": "Plan the implementation for this task."},
    {"id": "implement", "agent": "implementer", "prompt": "Implement the plan.", "depends_on": ["plan"]},
    {"id": "review", "agent": "reviewer", "prompt": "Review the implementation.", "depends_on": ["implement"], "readonly": true}
  ]
}
`

const defaultBoardMarkdown = `# Task Board

- [ ] [TASK-1] describe the first task
  Priority: MEDIUM
`
