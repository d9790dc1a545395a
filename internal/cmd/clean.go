package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/wiggum/internal/config"
	"github.com/harrison/wiggum/internal/pool"
)

// NewCleanCommand removes worker directories whose process has exited,
// leaving live workers untouched.
func NewCleanCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove dead worker directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			workersDir := filepath.Join(root, "workers")
			entries, err := os.ReadDir(workersDir)
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "no workers directory, nothing to clean")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to list workers directory: %w", err)
			}

			live, err := pool.RestoreFromDisk(root)
			if err != nil {
				return fmt.Errorf("failed to determine live workers: %w", err)
			}

			removed := 0
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				dir := filepath.Join(workersDir, e.Name())
				if !all {
					if _, alive := live.Get(dir); alive {
						continue
					}
				}
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("failed to remove %s: %w", dir, err)
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d worker directories\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every worker directory, even live ones")
	return cmd
}
