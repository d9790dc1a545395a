package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/wiggum/internal/board"
	"github.com/harrison/wiggum/internal/config"
	"github.com/harrison/wiggum/internal/models"
	"github.com/harrison/wiggum/internal/pool"
)

// NewStatusCommand reports the board's current shape without mutating
// anything: counts by status plus the live worker pool restored from disk.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the board's task and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindProjectRoot()
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfigFromDir(root)
			if err != nil {
				return err
			}

			boardPath := cfg.BoardPath
			if !filepath.IsAbs(boardPath) {
				boardPath = filepath.Join(root, boardPath)
			}
			b, err := board.Load(boardPath)
			if err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}

			counts := map[string]int{}
			for _, t := range b.List() {
				counts[t.Status]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.New(color.Bold).Sprint("board status"))
			for _, status := range []string{
				models.StatusPending, models.StatusInProgress, models.StatusDone,
				models.StatusFailed, models.StatusBlocked, models.StatusPendingApproval,
			} {
				fmt.Fprintf(out, "  %-18s %d\n", status, counts[status])
			}

			p, err := pool.RestoreFromDisk(root)
			if err != nil {
				return fmt.Errorf("failed to read worker pool: %w", err)
			}
			fmt.Fprintf(out, "\n%s %d\n", color.New(color.Bold).Sprint("live workers:"), p.Count(""))
			p.ForEach("", func(e models.PoolEntry) {
				fmt.Fprintf(out, "  %-20s %-8s pid=%d dir=%s\n", e.TaskID, e.Kind, e.PID, e.Dir)
			})

			return nil
		},
	}
	return cmd
}
