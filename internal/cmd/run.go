package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/wiggum/internal/agent"
	"github.com/harrison/wiggum/internal/board"
	"github.com/harrison/wiggum/internal/config"
	"github.com/harrison/wiggum/internal/history"
	"github.com/harrison/wiggum/internal/lifecycle"
	"github.com/harrison/wiggum/internal/logger"
	"github.com/harrison/wiggum/internal/pipeline"
	"github.com/harrison/wiggum/internal/pool"
	"github.com/harrison/wiggum/internal/scheduler"
)

// NewRunCommand drives the board to completion: it wires the board, pool,
// history store, pipeline runner, and scheduler together and runs the
// scheduler's main loop until the board drains or the command is
// interrupted.
func NewRunCommand() *cobra.Command {
	var (
		maxWorkers   int
		tickInterval time.Duration
		logDir       string
		dryRun       bool
		boardPath    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until the board drains",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfigFromDir(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("board") {
				cfg.BoardPath = boardPath
			}
			cfg.MergeWithFlags(
				flagIfChanged(cmd, "max-workers", &maxWorkers),
				flagIfChangedDuration(cmd, "tick-interval", &tickInterval),
				flagIfChangedString(cmd, "log-dir", &logDir),
				flagIfChangedBool(cmd, "dry-run", &dryRun),
			)
			if err := cfg.Validate(); err != nil {
				return err
			}

			resolvedBoard := cfg.BoardPath
			if !filepath.IsAbs(resolvedBoard) {
				resolvedBoard = filepath.Join(root, resolvedBoard)
			}
			b, err := board.Load(resolvedBoard)
			if err != nil {
				return fmt.Errorf("failed to load board: %w", err)
			}
			if err := b.DetectCycles(); err != nil {
				return err
			}

			historyPath, err := config.GetHistoryDBPathWithRoot(root)
			if err != nil {
				return err
			}
			h, err := history.Open(historyPath)
			if err != nil {
				return fmt.Errorf("failed to open history store: %w", err)
			}
			defer h.Close()

			p, err := pool.RestoreFromDisk(root)
			if err != nil {
				return fmt.Errorf("failed to restore worker pool: %w", err)
			}

			pipelineCfg, err := pipeline.LoadConfig(filepath.Join(root, cfg.PipelineConfigPath))
			if err != nil {
				return fmt.Errorf("failed to load pipeline config: %w", err)
			}

			registry := agent.NewRegistry()
			invoker := agent.NewInvoker(registry, 10*time.Minute)
			runner := pipeline.NewRunner(pipelineCfg, invoker)

			mgr := lifecycle.NewManager(root, b, p, runner)
			mgr.BaseBranch = cfg.BaseBranch

			console := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
			activityLog, err := logger.NewActivityLogger(root)
			if err != nil {
				return fmt.Errorf("failed to open activity log: %w", err)
			}

			sched := scheduler.New(cfg, b, p, h, mgr, console, activityLog)

			return sched.Run(cmd.Context(), resolvedBoard)
		},
	}

	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "override max concurrent workers")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 0, "override scheduler tick interval")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "override log directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "score and log without spawning workers")
	cmd.Flags().StringVar(&boardPath, "board", "", "override board file path")

	return cmd
}

func flagIfChanged(cmd *cobra.Command, name string, v *int) *int {
	if cmd.Flags().Changed(name) {
		return v
	}
	return nil
}

func flagIfChangedDuration(cmd *cobra.Command, name string, v *time.Duration) *time.Duration {
	if cmd.Flags().Changed(name) {
		return v
	}
	return nil
}

func flagIfChangedString(cmd *cobra.Command, name string, v *string) *string {
	if cmd.Flags().Changed(name) {
		return v
	}
	return nil
}

func flagIfChangedBool(cmd *cobra.Command, name string, v *bool) *bool {
	if cmd.Flags().Changed(name) {
		return v
	}
	return nil
}
