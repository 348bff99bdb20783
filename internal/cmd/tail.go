package cmd

import (
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/pspace/internal/observability"
	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/logstream"
	"github.com/3leaps/pspace/pkg/runstate"
)

var tailCmd = &cobra.Command{
	Use:   "tail [job_id]",
	Short: "Print the end of a job's log, optionally following it",
	Long: `Print the last lines of a job's log.

With --follow, keep polling until the job's log is complete. The job id
defaults to the last job run from this directory.

Examples:
  pspace tail                 # last 20 lines of the last job
  pspace tail -l all js1234   # whole log of job js1234
  pspace tail -f              # follow until the job finishes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

var tailFlagKeys = map[string]string{
	"follow": "follow",
	"last":   "last",
}

// streamClock drives follow mode; tests swap it for a fake.
var streamClock logstream.Clock = logstream.SystemClock{}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().BoolP("follow", "f", false, "Follow the log until the job finishes")
	tailCmd.Flags().StringP("last", "l", "", `Number of trailing lines to show, or "all" (default 20)`)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Tail,
		withJobIDArg(explicitArgs(cmd, tailFlagKeys), args),
		cmdconfig.KeyTotalLogLines, cmdconfig.KeyLastJobID)
	if err != nil {
		return err
	}
	jobID, err := inv.jobID()
	if err != nil {
		return err
	}

	lastRaw, _ := inv.opts.Get("last")
	tailLines, err := logstream.ParseTailLines(lastRaw)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --last value", err)
	}
	follow, err := inv.opts.Bool("follow")
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid follow value", err)
	}
	total, haveTotal, err := inv.opts.Int(cmdconfig.KeyTotalLogLines)
	if err != nil {
		haveTotal = false
	}
	lastJobID, _ := inv.opts.String(cmdconfig.KeyLastJobID)
	lineStart := logstream.ResumeOffset(total, haveTotal, lastJobID, jobID, tailLines)

	observability.CLILogger.Debug("Tailing job",
		zap.String("job_id", jobID),
		zap.Bool("follow", follow),
		zap.Int("tail_lines", tailLines),
		zap.Int("line_start", lineStart))

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	ctrl := logstream.New(client, jobID, logstream.Options{
		Follow:          follow,
		TailLines:       tailLines,
		LineStart:       lineStart,
		PollInterval:    durationSetting("poll_interval", logstream.DefaultPollInterval),
		SentinelTimeout: durationSetting("sentinel_timeout", logstream.DefaultSentinelTimeout),
		Logger:          observability.CLILogger,
	})

	res, err := ctrl.Run(ctx, streamClock, cmd.OutOrStdout())
	if err != nil {
		if errors.Is(err, logstream.ErrMalformedRecord) {
			return exitError(foundry.ExitExternalServiceUnavailable, "Tail failed", err)
		}
		return remoteFailure(ctx, "Tail", err)
	}
	observability.CLILogger.Debug("Tail finished",
		zap.String("job_id", jobID),
		zap.String("reason", string(res.Reason)),
		zap.Int("total_log_lines", res.TotalLines))

	extra := map[string]any{runstate.KeyLastJobID: jobID}
	switch {
	case res.Reason != logstream.ReasonNotStarted:
		extra[runstate.KeyTotalLogLines] = res.TotalLines
	case haveTotal && lastJobID == jobID:
		extra[runstate.KeyTotalLogLines] = total
	}
	return inv.saveState(res.Record, extra)
}

func durationSetting(key string, def time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return def
}
