package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printf(cmd, "pspace %s\n", versionInfo.Version)
		printf(cmd, "  commit: %s\n", versionInfo.Commit)
		printf(cmd, "  built:  %s\n", versionInfo.BuildDate)
		printf(cmd, "  go:     %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
