package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/scheduler"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute dispatched subtree keys as a worker",
	Long: `Reloads the published tree and input flow from the configured store,
runs the fit and predict passes of each given subtree key, and saves the
results back under the key prefix. Keys may come from 'epac keys'.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		st, err := openConfiguredStore(configPath)
		if err != nil {
			fmt.Printf("Error opening store: %v\n", err)
			os.Exit(1)
		}
		logger := newLogger(cmd)
		ctx := context.Background()
		for _, key := range args {
			if err := scheduler.RunWorker(ctx, st, key, scheduler.WithLogger(logger)); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
