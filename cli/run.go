package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/scheduler"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Today string
	JSON  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daily cycle once",
		Long: `Evaluate every active template against today and materialize the due ones.

Example:
  standing-orders run --db ./orders.db
  standing-orders run --today 2025-03-03 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Today, "today", "", "cycle date YYYY-MM-DD (default: today in scheduler.timezone)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the report as JSON")
	return cmd
}

func runCycle(ctx context.Context, opts *RunOptions, out io.Writer) error {
	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	today := a.clock.Today()
	if opts.Today != "" {
		today, err = recurring.ParseDate(opts.Today)
		if err != nil {
			return fmt.Errorf("--today: %w", err)
		}
	}

	report, err := a.sched.RunDailyCycle(ctx, today)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

func printReport(out io.Writer, r scheduler.CycleReport) {
	fmt.Fprintf(out, "Cycle %s for %s\n", r.RunID, r.Today)
	fmt.Fprintf(out, "  Evaluated: %d  Skipped: %d\n", r.Evaluated, r.Skipped)
	fmt.Fprintf(out, "  Executed:  %s\n", color.New(color.FgGreen).Sprint(r.Executed))
	for i, id := range r.Executions {
		fmt.Fprintf(out, "    ✓ %s -> order %s\n", id, r.Orders[i])
	}
	if r.SideEffects > 0 {
		fmt.Fprintf(out, "  Side effects failed: %s\n", color.New(color.FgYellow).Sprint(r.SideEffects))
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(out, "  Failed:    %s\n", color.New(color.FgRed).Sprint(len(r.Failures)))
		for _, f := range r.Failures {
			marker := ""
			if f.Final {
				marker = color.New(color.FgRed).Sprint(" (last window day, will not retry)")
			}
			fmt.Fprintf(out, "    ✗ %s [%s] %s%s\n", f.TemplateID, f.Stage, f.Error, marker)
		}
	}
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded cycle runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := scheduler.ListRuns(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cycle runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tTODAY\tSTATUS\tEXECUTED\tSKIPPED\tFAILED\tFINISHED")
			for _, r := range runs {
				status := color.New(color.FgGreen).Sprint(r.Status)
				if r.Status != scheduler.RunCompleted {
					status = color.New(color.FgRed).Sprint(r.Status)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.RunID, r.Today, status, r.Executed, r.Skipped, len(r.Failures),
					r.FinishedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show (0 = all)")
	return cmd
}
