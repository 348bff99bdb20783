package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/pspace/pkg/cmdconfig"
)

var stopCmd = &cobra.Command{
	Use:   "stop [job_id]",
	Short: "Stop a running job",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Stop, withJobIDArg(map[string]any{}, args))
	if err != nil {
		return err
	}
	jobID, err := inv.jobID()
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	printf(cmd, "Stopping job %s ...\n", jobID)
	if err := client.Stop(ctx, jobID); err != nil {
		return remoteFailure(ctx, "Stop", err)
	}
	printf(cmd, "Success\n")
	return nil
}
