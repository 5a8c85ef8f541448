package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rtsched/internal/analysis"
	"rtsched/internal/sched"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the static schedulability test for the configured task set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			policy, err := sched.ParsePolicy(cfg.Scheduler.Policy)
			if err != nil {
				return err
			}
			rep := analysis.Analyze(policy, cfg.Descriptors())

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			test := "density <= 1"
			if policy == sched.RateMonotonic {
				test = fmt.Sprintf("utilization <= %.4f (Liu-Layland, n=%d)", rep.Bound, rep.Tasks)
			}
			fmt.Fprintf(w, "Policy:      %s\n", rep.Policy)
			fmt.Fprintf(w, "Test:        %s\n", test)
			fmt.Fprintf(w, "Utilization: %.4f\n", rep.Utilization)
			fmt.Fprintf(w, "Density:     %.4f\n", rep.Density)
			fmt.Fprintf(w, "Verdict:     %s\n\n", rep.Verdict)

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tU\tDENSITY")
			for _, l := range rep.Loads {
				fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", l.ID, l.Utilization, l.Density)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
