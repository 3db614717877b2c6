package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Multi-agent product pipeline",
	Long: `Genesis turns a one-line product idea into a complete launch package:
a product requirements document, a brand guide, a technical architecture,
generated source code, a marketing plan, and an installation guide.

Six specialized agents run as a dependency graph: the brand designer and
architecture planner work concurrently once the PRD exists, the code
generator joins their outputs, and the marketing and onboarding agents
finish the package. Every run is recorded in a local SQLite database and
its artifacts are exported to an output directory.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
