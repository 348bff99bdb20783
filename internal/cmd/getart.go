package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/pspace/internal/observability"
	"github.com/3leaps/pspace/pkg/artifacts"
	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/paperspace"
)

var getartCmd = &cobra.Command{
	Use:   "getart [job_id]",
	Short: "Download a job's artifacts and log",
	Long: `Download a job's artifact files and its complete log (log.txt).

Files land in <destdir>/<job_id>. destdir may also be an S3 URI
(s3://bucket/prefix); AWS credentials come from the usual SDK sources.

Examples:
  pspace getart
  pspace getart js1234 --destdir results
  pspace getart --destdir s3://my-bucket/runs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGetart,
}

func init() {
	rootCmd.AddCommand(getartCmd)

	getartCmd.Flags().String("destdir", "", `Destination directory or s3:// URI (default "data")`)
}

func runGetart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Getart,
		withJobIDArg(explicitArgs(cmd, map[string]string{"destdir": "destdir"}), args))
	if err != nil {
		return err
	}
	jobID, err := inv.jobID()
	if err != nil {
		return err
	}
	destdir, _ := inv.opts.String("destdir")

	dest, err := artifacts.ParseDestination(destdir, jobID)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid destdir", err)
	}

	var sink artifacts.Sink
	if dest.IsS3() {
		s3Sink, err := artifacts.NewS3Sink(ctx, s3SinkConfig(dest))
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Cannot configure S3 destination", err)
		}
		sink = s3Sink
	} else {
		sink = &artifacts.LocalSink{Dir: dest.Dir}
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	printf(cmd, "Retrieving artifacts for job %s ...\n", jobID)
	sum, err := artifacts.Fetch(ctx, client, jobID, sink, observability.CLILogger)
	if err != nil {
		if ctx.Err() == nil && !dest.IsS3() && !paperspace.IsRemote(err) {
			observability.CLILogger.Error("Failed to save artifacts",
				zap.String("job_id", jobID),
				zap.String("dest", sink.Location()),
				zap.Error(err))
			return exitError(foundry.ExitFileWriteError, "Failed to save artifacts", err)
		}
		return remoteFailure(ctx, "Get artifacts", err)
	}

	printf(cmd, "Saved %d files (%d bytes) and %s to %s\n", sum.Files, sum.Bytes, artifacts.LogFileName, sum.Location)
	return nil
}

// s3SinkConfig combines an s3:// destination with the s3.* settings.
func s3SinkConfig(dest artifacts.Destination) artifacts.S3Config {
	return artifacts.S3Config{
		Bucket:          dest.Bucket,
		Prefix:          dest.Prefix,
		Region:          viper.GetString("s3.region"),
		Endpoint:        viper.GetString("s3.endpoint"),
		Profile:         viper.GetString("s3.profile"),
		AccessKeyID:     viper.GetString("s3.access_key_id"),
		SecretAccessKey: viper.GetString("s3.secret_access_key"),
		ForcePathStyle:  viper.GetBool("s3.force_path_style"),
	}
}
