package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"rtsched/internal/config"
	"rtsched/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the ticksched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ticksched",
		Short: "ticksched: tick-driven real-time scheduling simulator",
		Long: `ticksched simulates periodic and aperiodic tasks under rate-monotonic or
earliest-deadline-first scheduling on a discrete tick axis, with resource
blocking, deadline tracking and a live status dashboard.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewWithWriter(logging.Config{Level: flagLogLevel, Format: flagLogFormat}, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.yaml", "Configuration file (YAML or JSON)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newValidateCmd(),
		newAnalyzeCmd(),
	)

	return root
}

// loadConfig reads the configured file. The file's log section applies
// unless a log flag was given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if !flags.Changed("log-level") && !flagDebug {
		flagLogLevel = cfg.Log.Level
	}
	if !flags.Changed("log-format") {
		flagLogFormat = cfg.Log.Format
	}
	logger = logging.NewWithWriter(logging.Config{Level: flagLogLevel, Format: flagLogFormat}, cmd.ErrOrStderr())
	logger.Debug("configuration loaded", "path", cfg.Path, "environment", cfg.Environment)
	return cfg, nil
}
