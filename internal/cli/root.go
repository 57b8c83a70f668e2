package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/navqueue/internal/config"
	"github.com/roach88/navqueue/internal/harness"
	"github.com/roach88/navqueue/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogLevel  string
	LogFormat string

	// Config is loaded from the environment before any subcommand runs.
	Config config.Config

	// Logger is built from Config and the log flags.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the navqueue CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "navqueue",
		Short:         "navqueue - serialized navigation actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `Run navigation scenarios against the navqueue router.

Scenarios are YAML files describing calls, reactive emissions and host
lifecycle changes. The router executes every call one at a time, in order,
and the CLI reports the resulting trace.

Environment:
  NAVQUEUE_POLICY          default state-loss policy (postpone|ignore|error)
  NAVQUEUE_LOG_LEVEL       debug|info|warn|error
  NAVQUEUE_LOG_FORMAT      text|json
  NAVQUEUE_DB              journal database path
  NAVQUEUE_METRICS         print router metrics after a run
  NAVQUEUE_SETTLE_TIMEOUT  per-step settle timeout`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides NAVQUEUE_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (overrides NAVQUEUE_LOG_FORMAT)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

func (o *RootOptions) init(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg

	level := cfg.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	format := cfg.LogFormat
	if o.LogFormat != "" {
		format = o.LogFormat
	}

	lvl := logging.ParseLevel(level)
	if o.Verbose {
		lvl = slog.LevelDebug
	}
	o.Logger = logging.New(cmd.ErrOrStderr(), lvl, format)
	return nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

func (o *RootOptions) settleTimeout() time.Duration {
	if o.Config.SettleTimeout <= 0 {
		return harness.DefaultSettleTimeout
	}
	return o.Config.SettleTimeout
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
