// Package observability holds the process-wide CLI logger.
package observability

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It writes to stderr so that
// command output on stdout stays clean. It is a no-op until InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for the named service. verbose forces
// debug level; otherwise level is parsed from the given string ("info" when
// empty or unrecognized).
func InitCLILogger(service string, verbose bool, level ...string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if len(level) > 0 {
		lvl = ParseLevel(level[0])
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !isTerminal(os.Stderr) {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(lvl),
	)
	logger := zap.New(core)
	if service != "" {
		logger = logger.Named(service)
	}
	CLILogger = logger
	return logger
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Sync flushes CLILogger, ignoring the errors stderr reports on some platforms.
func Sync() {
	_ = CLILogger.Sync()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
