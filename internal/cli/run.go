package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rtsched/internal/analysis"
	"rtsched/internal/job"
	"rtsched/internal/sched"
	"rtsched/internal/store"
)

const defaultRunTicks = 100

type runResult struct {
	RunID    string                 `json:"runId,omitempty"`
	Report   sched.StatisticsReport `json:"report"`
	Observed analysis.Observation   `json:"observed"`
	Alerts   []sched.Alert          `json:"alerts"`
}

func newRunCmd() *cobra.Command {
	var ticks int
	var dbPath, csvPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the configured task set and print a report",
		Long: `Simulates the configured task set. With --ticks the scheduler simply runs
that many ticks; otherwise the configured script (or the built-in
contention demo) is replayed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var observers []sched.Observer
			var st *store.SQLiteStore
			var run *store.Run
			if dbPath != "" {
				st, err = store.NewSQLiteStore(dbPath, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				run = &store.Run{Policy: cfg.Scheduler.Policy, Environment: cfg.Environment, ConfigPath: cfg.Path}
				if err := st.CreateRun(ctx, run); err != nil {
					return fmt.Errorf("create run: %w", err)
				}
				observers = append(observers, store.NewFaultLogger(ctx, st, run.ID, logger))
			}

			s, err := buildScheduler(cfg, logger, observers...)
			if err != nil {
				return err
			}
			if csvPath != "" {
				if err := s.EnableCSVLogging(csvPath); err != nil {
					return fmt.Errorf("csv log: %w", err)
				}
			}
			defer s.Close()

			logger.Info("starting simulation", "policy", s.Policy(), "tasks", len(cfg.Tasks))
			switch steps := cfg.Steps(); {
			case ticks > 0:
				err = s.Run(ticks)
			case len(steps) > 0:
				err = job.Play(ctx, s, steps)
			default:
				err = s.Run(defaultRunTicks)
			}
			if err != nil {
				return err
			}

			res := runResult{Report: s.Report(), Alerts: s.Alerts()}
			res.Observed = analysis.Observe(res.Report)
			if st != nil {
				res.RunID = run.ID
				if err := st.FinishRun(ctx, run.ID, res.Report); err != nil {
					return fmt.Errorf("finish run: %w", err)
				}
			}
			logger.Info("simulation completed", "ticks", res.Report.Ticks,
				"missed_deadlines", res.Report.TotalMissedDeadlines)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printRun(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVar(&ticks, "ticks", 0, "Run this many ticks instead of the script")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database recording the run and its faults")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the execution history as CSV to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func printRun(w io.Writer, res runResult) {
	r := res.Report
	if res.RunID != "" {
		fmt.Fprintf(w, "Run:        %s\n", res.RunID)
	}
	fmt.Fprintf(w, "Ticks:      %d\n", r.Ticks)
	fmt.Fprintf(w, "Busy:       %d (%.1f%%)\n", r.TotalExecutionTime, 100*res.Observed.Busy)
	fmt.Fprintf(w, "Idle:       %d\n", r.TotalIdleTime)
	fmt.Fprintf(w, "Missed:     %d\n", r.TotalMissedDeadlines)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tPERIOD\tEXEC\tRUNS\tDONE\tMISSED")
	for _, t := range r.Tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			t.ID, t.Status, t.Period, t.ExecutionTime, t.Executions, t.CompletedJobs, t.MissedDeadlines)
	}
	tw.Flush()

	if len(res.Alerts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent alerts:")
		for _, a := range res.Alerts {
			fmt.Fprintf(w, "  [%s] tick %d: %s\n", a.Code, a.Tick, a.Message)
		}
	}
}
