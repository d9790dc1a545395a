package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for wiggum.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiggum",
		Short: "Autonomous task board orchestrator",
		Long: `Wiggum drives a markdown task board to completion by spawning and
managing sub-agent workers for each ready task.

It parses the board, scores ready tasks by priority, age, and dependency
fan-in, and runs their pipelines to a terminal gate, reconciling outcomes
back onto the board as it goes.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewCleanCommand())

	return cmd
}
