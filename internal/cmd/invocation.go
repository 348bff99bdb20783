package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/pspace/internal/observability"
	"github.com/3leaps/pspace/pkg/cmdconfig"
	"github.com/3leaps/pspace/pkg/job"
	"github.com/3leaps/pspace/pkg/paperspace"
	"github.com/3leaps/pspace/pkg/projectconfig"
	"github.com/3leaps/pspace/pkg/runstate"
)

var errMissingJobID = errors.New("cannot determine job id")

// invocation is everything a command resolves before talking to the API.
type invocation struct {
	dir   string
	file  *projectconfig.File
	store *runstate.Store
	state *runstate.State
	opts  cmdconfig.Effective
}

// resolveWorkDir returns --dir or the process working directory.
func resolveWorkDir() (string, error) {
	if strings.TrimSpace(workDir) != "" {
		return filepath.Abs(workDir)
	}
	return os.Getwd()
}

// newInvocation loads the project file and run state for the working
// directory and resolves the command's options. args holds only values the
// user set explicitly.
func newInvocation(command cmdconfig.Command, args map[string]any, extra ...string) (*invocation, error) {
	dir, err := resolveWorkDir()
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Cannot determine working directory", err)
	}

	file, err := projectconfig.LoadDir(dir)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid project config", err)
	}

	store := runstate.NewStore(dir, projectconfig.Markers()...)
	st, err := store.Load()
	if err != nil {
		return nil, exitError(foundry.ExitFileReadError, "Cannot read run state", err)
	}

	opts := cmdconfig.ResolveCommand(command, cmdconfig.Layers{
		Args:  cmdconfig.ArgsProvider(args),
		File:  cmdconfig.FileProvider(file, command.Name),
		State: cmdconfig.StateProvider(st),
	}, extra...)

	if ce := observability.CLILogger.Check(zap.DebugLevel, "Resolved options"); ce != nil {
		fields := []zap.Field{zap.String("command", command.Name), zap.String("dir", dir)}
		for _, k := range opts.Keys() {
			src := opts.Source(k)
			if src == "" {
				src = "unset"
			}
			fields = append(fields, zap.String(k, src))
		}
		ce.Write(fields...)
	}

	return &invocation{dir: dir, file: file, store: store, state: st, opts: opts}, nil
}

// jobID returns the resolved job id or errMissingJobID.
func (inv *invocation) jobID() (string, error) {
	id, ok := inv.opts.String(cmdconfig.KeyJobID)
	if !ok || strings.TrimSpace(id) == "" {
		return "", exitError(foundry.ExitInvalidArgument, "No job id", errMissingJobID)
	}
	return strings.TrimSpace(id), nil
}

// saveState records rec as the last job for this directory. Directories
// without a project file are left untouched.
func (inv *invocation) saveState(rec *job.Record, extra map[string]any) error {
	if rec == nil {
		return nil
	}
	if !inv.store.HasMarker() {
		observability.CLILogger.Debug("No project file, run state not saved", zap.String("dir", inv.dir))
		return nil
	}
	if err := inv.store.Save(rec, extra); err != nil {
		observability.CLILogger.Error("Failed to save run state",
			zap.String("path", inv.store.Path()),
			zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to save run state", err)
	}
	return nil
}

// explicitArgs collects flag values the user actually set, keyed by option
// name. keys maps flag names to option keys.
func explicitArgs(cmd *cobra.Command, keys map[string]string) map[string]any {
	out := map[string]any{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok || !f.Changed {
			return
		}
		switch f.Value.Type() {
		case "bool":
			v, _ := cmd.Flags().GetBool(f.Name)
			out[key] = v
		case "int":
			v, _ := cmd.Flags().GetInt(f.Name)
			out[key] = v
		default:
			out[key] = f.Value.String()
		}
	})
	return out
}

// withJobIDArg adds a positional job id to args.
func withJobIDArg(args map[string]any, positional []string) map[string]any {
	if len(positional) > 0 && strings.TrimSpace(positional[0]) != "" {
		args[cmdconfig.KeyJobID] = strings.TrimSpace(positional[0])
	}
	return args
}

// newAPIClient builds the Paperspace client from application config.
func newAPIClient() (*paperspace.Client, error) {
	client, err := paperspace.New(paperspace.Config{
		APIKey:       viper.GetString("api_key"),
		APIURL:       viper.GetString("api_url"),
		LogsURL:      viper.GetString("logs_url"),
		LogPageLimit: viper.GetInt("log_page_limit"),
		RateLimit:    viper.GetFloat64("rate_limit"),
		Logger:       observability.CLILogger,
	})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid API configuration", err)
	}
	return client, nil
}

// remoteFailure converts an API failure into an exit error.
func remoteFailure(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return exitError(foundry.ExitSignalInt, op+" cancelled", err)
	}
	if re, ok := paperspace.AsRemote(err); ok {
		observability.CLILogger.Debug(op+" rejected",
			zap.Int("status", re.Status),
			zap.String("message", re.Message))
	}
	return exitError(foundry.ExitExternalServiceUnavailable, op+" failed", err)
}

func printf(cmd *cobra.Command, format string, a ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
