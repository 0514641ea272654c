package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Skuld",
	Args:  cobra.NoArgs,
	// Skip loading the config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Skuld %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
