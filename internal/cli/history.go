package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/VetrexCZ/pemacheck/internal/history"
)

type historyFlags struct {
	limit int
	json  bool
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `History lists past runs, newest first. With a run ID it prints every
check of that run.

Examples:
  pemacheck history
  pemacheck history --limit 5 --json
  pemacheck history 3f2c9a1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Run.HistoryPath)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(opts, run)
				}
				return printRun(opts, run)
			}

			runs, err := store.List(cmd.Context(), flags.limit)
			if err != nil {
				return err
			}
			if flags.json {
				return writeJSON(opts, runs)
			}
			return printRuns(opts, runs)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print as JSON")
	return cmd
}

func printRuns(opts *rootOptions, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(opts.stdout, "No runs recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tRESULT\tCHECKS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			r.Started.Local().Format(time.DateTime),
			r.Finished.Sub(r.Started).Round(time.Millisecond),
			result(r.Passed),
			len(r.Outcomes),
		)
	}
	return tw.Flush()
}

func printRun(opts *rootOptions, r history.Run) error {
	fmt.Fprintf(opts.stdout, "Run %s (%s)\n", r.ID, result(r.Passed))
	fmt.Fprintf(opts.stdout, "Target:  %s\n", r.Target)
	fmt.Fprintf(opts.stdout, "Started: %s\n", r.Started.Local().Format(time.DateTime))
	if r.Error != "" {
		fmt.Fprintf(opts.stdout, "Error:   %s\n", r.Error)
	}
	if r.Screenshot != "" {
		fmt.Fprintf(opts.stdout, "Screenshot: %s\n", r.Screenshot)
	}
	fmt.Fprintln(opts.stdout)

	tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDURATION\tDETAIL")
	for _, o := range r.Outcomes {
		status := o.Status
		if o.SoftFail {
			status += " (soft)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, status, o.Duration.Round(time.Millisecond), o.Detail)
	}
	return tw.Flush()
}

func result(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func writeJSON(opts *rootOptions, v any) error {
	enc := json.NewEncoder(opts.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
