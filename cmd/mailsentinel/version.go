package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		bold := color.New(color.FgWhite, color.Bold)
		bold.Fprint(cmd.OutOrStdout(), "mail-sentinel ")
		fmt.Fprintf(cmd.OutOrStdout(), "%s (commit: %s, built: %s)\n", Version, commit, date)
	},
}
