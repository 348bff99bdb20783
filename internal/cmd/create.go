package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/pspace/internal/observability"
	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/job"
	"github.com/3leaps/pspace/pkg/paperspace"
	"github.com/3leaps/pspace/pkg/workspace"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit the working directory as a new job",
	Long: `Submit the working directory as a new Paperspace job.

The directory is zipped (minus ignoreFiles patterns) and uploaded; the job runs
the configured commands in order.

Examples:
  pspace create --commands "pip install -r requirements.txt;python train.py"
  pspace create --machineType P4000 --ignoreFiles data,checkpoints`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var createFlagKeys = map[string]string{
	"machineType": "machineType",
	"project":     "project",
	"ignoreFiles": "ignoreFiles",
	"container":   "container",
	"commands":    "commands",
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("machineType", "", "Machine type (default K80)")
	createCmd.Flags().String("project", "", "Project name (default: working directory name)")
	createCmd.Flags().String("ignoreFiles", "", "Comma-separated glob patterns to leave out of the workspace")
	createCmd.Flags().String("container", "", "Container image")
	createCmd.Flags().String("commands", "", "Semicolon-separated commands to run")
}

// createOptions is the typed view of the create section.
type createOptions struct {
	MachineType string   `mapstructure:"machineType"`
	Project     string   `mapstructure:"project"`
	IgnoreFiles []string `mapstructure:"ignoreFiles"`
	Container   string   `mapstructure:"container"`
	Commands    []string `mapstructure:"commands"`
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inv, err := newInvocation(cmdconfig.Create, explicitArgs(cmd, createFlagKeys))
	if err != nil {
		return err
	}
	if !inv.opts.IsSet("project") {
		inv.opts.Set("project", filepath.Base(inv.dir), "workdir")
	}
	// Flag forms are delimited strings; the project file uses lists.
	inv.opts.Set("ignoreFiles", inv.opts.Strings("ignoreFiles"), inv.opts.Source("ignoreFiles"))
	inv.opts.Set("commands", commandList(inv.opts), inv.opts.Source("commands"))

	var opts createOptions
	if err := inv.opts.Decode(&opts); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid create options", err)
	}
	if len(opts.Commands) == 0 {
		return exitError(foundry.ExitInvalidArgument, "Nothing to run",
			errors.New("no commands configured (use --commands or create.commands in pspace.yaml)"))
	}

	printf(cmd, "Submitting with options:\n")
	printf(cmd, "%s", formatCreateOptions(opts))

	ignore, err := workspace.NewIgnore(opts.IgnoreFiles)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid ignoreFiles pattern", err)
	}
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	rec, stats, err := submit(ctx, client, inv.dir, ignore, paperspace.CreateParams{
		Container:     opts.Container,
		MachineType:   opts.MachineType,
		Command:       strings.Join(opts.Commands, "; "),
		Project:       opts.Project,
		IgnoreFiles:   opts.IgnoreFiles,
		WorkspaceName: workspace.ArchiveName(inv.dir),
	})
	if err != nil {
		return err
	}
	observability.CLILogger.Debug("Uploaded workspace",
		zap.String("dir", inv.dir),
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("bytes", stats.Bytes))

	printf(cmd, "Job %s created.\n", rec.ID)
	return inv.saveState(rec, nil)
}

// submit packs dir straight into the upload body while the create request is
// in flight.
func submit(ctx context.Context, client *paperspace.Client, dir string, ignore *workspace.Ignore, params paperspace.CreateParams) (*job.Record, workspace.Stats, error) {
	pr, pw := io.Pipe()
	packed := make(chan error, 1)
	var stats workspace.Stats
	go func() {
		var err error
		stats, err = workspace.Pack(ctx, dir, ignore, pw)
		_ = pw.CloseWithError(err)
		packed <- err
	}()

	params.Workspace = pr
	rec, err := client.Create(ctx, params)
	// Unblocks the packer when the upload ended early.
	_ = pr.Close()
	packErr := <-packed

	if packErr != nil && !errors.Is(packErr, io.ErrClosedPipe) {
		if ctx.Err() != nil {
			return nil, stats, exitError(foundry.ExitSignalInt, "Create cancelled", packErr)
		}
		return nil, stats, exitError(foundry.ExitFileReadError, "Failed to pack workspace", packErr)
	}
	if err != nil {
		return nil, stats, remoteFailure(ctx, "Create", err)
	}
	return rec, stats, nil
}

// commandList reads commands as a list, splitting the flag form on ";".
func commandList(opts cmdconfig.Effective) []string {
	v, ok := opts.Get("commands")
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		return cmdconfig.SplitList(s, ";")
	}
	return opts.Strings("commands")
}

func formatCreateOptions(o createOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  machineType: %s\n", o.MachineType)
	fmt.Fprintf(&b, "  project:     %s\n", o.Project)
	fmt.Fprintf(&b, "  ignoreFiles: %s\n", strings.Join(o.IgnoreFiles, ", "))
	fmt.Fprintf(&b, "  container:   %s\n", o.Container)
	b.WriteString("  commands:\n")
	for _, c := range o.Commands {
		fmt.Fprintf(&b, "    %s\n", c)
	}
	return b.String()
}
