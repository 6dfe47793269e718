package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"timesheet/internal/config"
	"timesheet/internal/history"
	"timesheet/internal/job"
	"timesheet/internal/render"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		sourceName string
		date       string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record last week's totals once",
		Long: `Fetch the events of the most recent complete week, total them per category,
print a summary and append the week to the CSV log (and the history database
when history_db is set).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if sourceName != "" {
				cfg.Source = sourceName
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var ref time.Time
			if date != "" {
				ref, err = time.ParseInLocation("2006-01-02", date, cfg.Location())
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
			}

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			return runOnce(cmd.Context(), cmd.OutOrStdout(), cfg, store, ref, dryRun)
		},
	}

	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "Calendar source: ics, google or exchange (overrides config)")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD; the week before it is recorded (default today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the summary without writing the CSV or history")
	return cmd
}

// runOnce builds the configured source and runs the weekly job.
func runOnce(ctx context.Context, out io.Writer, cfg *config.Config, store *history.Store, ref time.Time, dryRun bool) error {
	src, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}

	opts := job.Options{
		Reference:     ref,
		Location:      cfg.Location(),
		WeekStart:     cfg.WeekStart,
		CSVPath:       cfg.CSVPath,
		IncludeAllDay: cfg.CountAllDay,
		DryRun:        dryRun,
	}
	if store != nil {
		opts.History = store
	}

	res, err := job.Run(ctx, src, opts)
	if err != nil {
		return err
	}

	color := useColor(out)
	fmt.Fprint(out, render.Summary(res.Record, color))
	fmt.Fprint(out, render.Unclassified(res.Unclassified, color))
	if res.Written {
		fmt.Fprintf(out, "Appended week %s to %s\n", res.Record.Key(), cfg.CSVPath)
	} else {
		fmt.Fprintln(out, "Dry run: nothing written")
	}
	return nil
}
