package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/projectconfig"
)

var newyamlCmd = &cobra.Command{
	Use:   "newyaml",
	Short: "Write a pspace.yaml with the built-in defaults",
	Long: `Write pspace.yaml in the working directory, filled with the built-in
defaults for every command. The file also marks the directory as a pspace
project, which enables saving last-run state.`,
	Args: cobra.NoArgs,
	RunE: runNewyaml,
}

func init() {
	rootCmd.AddCommand(newyamlCmd)

	newyamlCmd.Flags().Bool("force", false, "Overwrite an existing pspace.yaml")
}

func runNewyaml(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	dir, err := resolveWorkDir()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot determine working directory", err)
	}
	path, err := projectconfig.WriteNew(dir, cmdconfig.TemplateSections(), force)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot write project config", err)
	}
	printf(cmd, "Wrote %s\n", path)
	return nil
}
