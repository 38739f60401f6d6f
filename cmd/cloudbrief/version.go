package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cloudbrief version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Println("cloudbrief", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
