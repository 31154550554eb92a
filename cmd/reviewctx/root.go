package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"reviewctx/internal/config"
	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/slogutil"
	"reviewctx/internal/version"
)

var (
	repoFlag      string
	configFlag    string
	verbosity     int
	quietFlag     bool
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "reviewctx",
	Short: "Assemble review context for a unified diff",
	Long: `reviewctx reads a unified diff and a repository checkout and emits the
context a reviewer needs: the changed hunks, the definitions of symbols the
change references, and any extra files configured for the touched paths.

Output is bounded by max_context_chars and max_diff_chars and is identical
across runs for identical inputs.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("reviewctx {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file (default: <repo>/.reviewctx.{yml,yaml,toml,json})")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all logging")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: human or json (default: from config)")
}

// repoRoot resolves --repo to an absolute path.
func repoRoot() (string, error) {
	root := repoFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", rerrors.New(rerrors.InternalError, "failed to get current directory", err)
		}
		root = wd
	}
	return filepath.Abs(root)
}

// loadConfig reads --config, or the repository's configuration file.
func loadConfig(root string) (*config.Config, error) {
	if configFlag != "" {
		return config.LoadConfigFile(configFlag)
	}
	return config.LoadConfig(root)
}

// newLogger writes to stderr so stdout stays machine-readable. Flags win
// over the configured level and format.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if quietFlag || cmd.Flags().Changed("verbose") {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	format := slogutil.Format(cfg.Logging.Format)
	if logFormatFlag != "" {
		format = slogutil.Format(logFormatFlag)
	}
	return slogutil.New(os.Stderr, format, level)
}

// newContext is cancelled by SIGINT and SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// exitCode maps a command error to the process status: 2 for input that is
// not a diff or an unusable configuration, 130 for interruption, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case rerrors.HasCode(err, rerrors.ParseFailed), rerrors.HasCode(err, rerrors.InvalidConfig):
		return 2
	default:
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			return 2
		}
		return 1
	}
}
