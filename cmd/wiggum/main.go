package main

import (
	"fmt"
	"os"

	"github.com/harrison/wiggum/internal/cmd"
)

// Version is the current version of the wiggum orchestrator, overridable
// at build time via -ldflags "-X main.Version=...".
var Version = "1.0.0"

func main() {
	cmd.Version = Version
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
