package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurospin/epac/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "epac",
	Short: "epac runs and recombines distributed workflow-tree experiments",
	Long: `epac drives the distributed side of a workflow-tree experiment:
workers execute dispatched subtree keys against a shared store, and the
recombiner folds the persisted partial results into one summary.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the worker configuration file (YAML)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}
