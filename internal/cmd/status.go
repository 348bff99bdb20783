package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/pspace/pkg/cmdconfig"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show a job's state and timing",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolP("utc", "u", false, "Show times in UTC")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Status,
		withJobIDArg(explicitArgs(cmd, map[string]string{"utc": "utc"}), args))
	if err != nil {
		return err
	}
	jobID, err := inv.jobID()
	if err != nil {
		return err
	}
	utc, err := inv.opts.Bool("utc")
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid utc value", err)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	rec, err := client.Show(ctx, jobID)
	if err != nil {
		return remoteFailure(ctx, "Status", err)
	}
	if err := inv.saveState(rec, nil); err != nil {
		return err
	}

	printf(cmd, "%s", formatJob(rec, statusPrintKeys, utc, time.Now()))
	return nil
}
