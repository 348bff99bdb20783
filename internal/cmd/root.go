package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/pspace/internal/observability"
	"github.com/3leaps/pspace/pkg/paperspace"
)

// VersionInfo is stamped at build time via SetVersionInfo.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile  string
	verbose  bool
	logLevel string
	workDir  string
)

var rootCmd = &cobra.Command{
	Use:   "pspace",
	Short: "Submit, follow and collect Paperspace jobs",
	Long: `pspace submits jobs to the Paperspace job service and follows their logs.

Options for each command are resolved from, lowest to highest precedence:
built-in defaults, the last job run from this directory (.pspace/state.json),
the project file (pspace.yaml), and command-line arguments.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitCLILogger("pspace", verbose, viper.GetString("log_level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/pspace/config.yaml)")
	pf.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.String("api-key", "", "Paperspace API key (default from PAPERSPACE_API_KEY or ~/.paperspace/config.json)")
	pf.StringVarP(&workDir, "dir", "C", "", "Run as if started in this directory")

	_ = viper.BindPFlag("api_key", pf.Lookup("api-key"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
}

// initConfig reads the user config file and environment.
func initConfig() {
	setDefaults()

	viper.SetEnvPrefix("PSPACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "PSPACE_API_KEY", "PAPERSPACE_API_KEY")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "pspace"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: cannot read config: %v\n", err)
		}
	}

	if key := paperspaceCLIKey(); key != "" {
		viper.SetDefault("api_key", key)
	}
}

// setDefaults registers application defaults.
func setDefaults() {
	viper.SetDefault("api_url", paperspace.DefaultAPIURL)
	viper.SetDefault("logs_url", paperspace.DefaultLogsURL)
	viper.SetDefault("log_page_limit", paperspace.DefaultLogPageLimit)
	viper.SetDefault("rate_limit", paperspace.DefaultRateLimit)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("poll_interval", "5s")
	viper.SetDefault("sentinel_timeout", "20s")

	viper.SetDefault("s3.region", "")
	viper.SetDefault("s3.endpoint", "")
	viper.SetDefault("s3.profile", "")
	viper.SetDefault("s3.access_key_id", "")
	viper.SetDefault("s3.secret_access_key", "")
	viper.SetDefault("s3.force_path_style", false)
}

// paperspaceCLIKey reads the key saved by the official Paperspace CLI login.
func paperspaceCLIKey() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(home, ".paperspace", "config.json"))
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.GetString("apiKey")
}

// ExitError carries a process exit code alongside the failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitFailure is used for errors that carry no specific exit code.
const exitFailure = 1

// Execute runs the command tree and returns the process exit code. SIGINT and
// SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	err := rootCmd.ExecuteContext(ctx)
	return reportError(os.Stderr, err)
}

// reportError prints err for the user and maps it to an exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	code := exitFailure
	var ee *ExitError
	if errors.As(err, &ee) {
		code = ee.Code
	}

	switch {
	case code == foundry.ExitSignalInt || errors.Is(err, context.Canceled):
		_, _ = fmt.Fprintln(w, "Stopped by Keyboard Interrupt")
		return foundry.ExitSignalInt
	case errors.Is(err, errMissingJobID):
		_, _ = fmt.Fprintln(w, "Cannot determine job id.")
	default:
		if re, ok := paperspace.AsRemote(err); ok {
			_, _ = fmt.Fprintf(w, "Error %d: %s\n", re.Status, re.Message)
		} else {
			_, _ = fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
	observability.CLILogger.Debug("Command failed", zap.Int("exit_code", code), zap.Error(err))
	return code
}
