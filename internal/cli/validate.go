package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// the scheduler applies the per-policy rules the file format cannot
			s, err := buildScheduler(cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %s (%s environment)\n", cfg.Path, cfg.Environment)
			fmt.Fprintf(cmd.OutOrStdout(), "  Policy:    %s\n", s.Policy())
			fmt.Fprintf(cmd.OutOrStdout(), "  Tasks:     %d\n", len(cfg.Tasks))
			fmt.Fprintf(cmd.OutOrStdout(), "  Resources: %d\n", len(cfg.Resources))
			fmt.Fprintf(cmd.OutOrStdout(), "  Script:    %d steps\n", len(cfg.Steps()))
			return nil
		},
	}
}
