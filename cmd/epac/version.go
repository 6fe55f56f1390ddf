package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurospin/epac"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of epac",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("epac version %s\n", epac.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
