package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/scheduler"
	"github.com/neurospin/epac/pkg/workflow"
)

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys [pattern]",
	Short: "List dispatchable subtree keys of the published tree",
	Long: `Rebuilds the tree from the configured store and lists its node keys,
splitter virtual children expanded. An optional glob-style pattern filters
the keys segment-wise, e.g. 'CV/CV(nb=*)'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		st, err := openConfiguredStore(configPath)
		if err != nil {
			fmt.Printf("Error opening store: %v\n", err)
			os.Exit(1)
		}
		root, err := workflow.LoadTree(context.Background(), st)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		keys, err := scheduler.Enumerate(root, pattern)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		for _, key := range keys {
			fmt.Println(key)
		}
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
