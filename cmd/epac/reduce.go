package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/scheduler"
)

// reduceCmd represents the reduce command
var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Recombine and reduce the persisted partial results",
	Long: `Rebuilds the tree from the configured store and folds every persisted
partial result bottom-up into one aggregated result set, printed as JSON.
Branches that never completed appear only as missing entries.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		st, err := openConfiguredStore(configPath)
		if err != nil {
			fmt.Printf("Error opening store: %v\n", err)
			os.Exit(1)
		}
		results, err := scheduler.Recombine(context.Background(), st, scheduler.WithLogger(newLogger(cmd)))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(results.String())
	},
}

func init() {
	rootCmd.AddCommand(reduceCmd)
}
