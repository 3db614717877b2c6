package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shayc/genesis/internal/run"
)

var stopClear bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel the pipeline run started in this directory",
	Long: `Signal a running pipeline to stop.

The stop signal is a file under .genesis/signals; a run started from the
same directory watches for it and cancels its in-flight work. Agents
already mid-call finish their current generation before the run aborts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		if stopClear {
			if err := run.ClearStop(cwd); err != nil {
				return err
			}
			fmt.Printf("%s Stop signal cleared\n", color.GreenString("✓"))
			return nil
		}

		if err := run.RequestStop(cwd); err != nil {
			return err
		}
		fmt.Printf("%s Stop requested; the run will cancel after in-flight agents finish\n", color.YellowString("⚠"))
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopClear, "clear", false, "Remove a pending stop signal instead of setting one")
}
