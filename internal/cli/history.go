package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"timesheet/internal/aggregate"
	"timesheet/internal/csvlog"
	"timesheet/internal/render"
)

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded weeks",
		Long: `List the weeks stored in history_db, newest first. Without a history
database the CSV log is summarized instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				header, rows, err := csvlog.ReadAll(cfg.CSVPath)
				if err != nil {
					return fmt.Errorf("history_db is not set and the CSV log is unreadable: %w", err)
				}
				fmt.Fprintf(out, "%s: %d week(s), columns: %d\n", cfg.CSVPath, len(rows), len(header))
				for _, row := range rows {
					if len(row) < 3 {
						continue
					}
					fmt.Fprintf(out, "  %s  %s\n", row[0], row[len(row)-2])
				}
				return nil
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			recs := make([]aggregate.WeeklyRecord, 0, len(entries))
			for _, e := range entries {
				recs = append(recs, e.Record)
			}

			if asJSON {
				type week struct {
					WeekStart   string  `json:"week_start"`
					WeeklyHours float64 `json:"weekly_hours"`
				}
				weeks := make([]week, 0, len(recs))
				for _, r := range recs {
					weeks = append(weeks, week{WeekStart: r.Key(), WeeklyHours: r.WeeklyHours()})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(weeks)
			}

			fmt.Fprint(out, render.Weeks(recs, useColor(out)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
