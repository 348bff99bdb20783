package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/job"
	"github.com/3leaps/pspace/pkg/paperspace"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs",
	Long: `List jobs, oldest first.

The state filter is case-insensitive and may be abbreviated ("run" for
Running, "stop" for Stopped) as long as it names exactly one state.

Examples:
  pspace jobs -p mnist -l 5
  pspace jobs -s fail`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

var jobsFlagKeys = map[string]string{
	"project": "project",
	"state":   "state",
	"last":    "last",
	"utc":     "utc",
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringP("project", "p", "", "Only jobs in this project")
	jobsCmd.Flags().StringP("state", "s", "", "Only jobs in this state")
	jobsCmd.Flags().IntP("last", "l", 0, "Only the last N jobs")
	jobsCmd.Flags().BoolP("utc", "u", false, "Show times in UTC")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Jobs, explicitArgs(cmd, jobsFlagKeys))
	if err != nil {
		return err
	}

	filter := paperspace.ListFilter{}
	filter.Project, _ = inv.opts.String("project")
	if s, ok := inv.opts.String("state"); ok && s != "" {
		state, err := job.ParseState(s)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid state filter", err)
		}
		filter.State = state
	}
	last, haveLast, err := inv.opts.Int("last")
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid last value", err)
	}
	utc, err := inv.opts.Bool("utc")
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid utc value", err)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	recs, err := client.List(ctx, filter)
	if err != nil {
		return remoteFailure(ctx, "List jobs", err)
	}
	recs = lastJobs(recs, last, haveLast)

	now := time.Now()
	for i := range recs {
		if i > 0 {
			printf(cmd, "\n")
		}
		printf(cmd, "%s", formatJob(&recs[i], jobsPrintKeys, utc, now))
	}
	return nil
}

// lastJobs keeps the chronologically last n records; the service lists
// oldest first.
func lastJobs(recs []job.Record, n int, set bool) []job.Record {
	if !set || n <= 0 || n >= len(recs) {
		return recs
	}
	return recs[len(recs)-n:]
}
