package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "timesheet/internal/log"
)

func newScheduleCmd(a *app) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Record each week automatically on the configured cron schedule",
		Long: `Stay running and execute "run" on the config's cron schedule (standard
5-field syntax, evaluated in the configured timezone) until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			tick := func() {
				if err := runOnce(ctx, out, cfg, store, time.Time{}, false); err != nil {
					appLog.Error("scheduled run failed", err)
				}
			}

			c := cron.New(cron.WithLocation(cfg.Location()))
			id, err := c.AddFunc(cfg.Schedule, tick)
			if err != nil {
				return err
			}

			if runNow {
				tick()
			}

			c.Start()
			appLog.Info("scheduler started",
				"schedule", cfg.Schedule,
				"timezone", cfg.Location().String(),
				"next", c.Entry(id).Next.Format(time.RFC3339),
			)

			<-ctx.Done()
			appLog.Info("signal received, stopping scheduler")
			waitCtx := c.Stop()
			select {
			case <-waitCtx.Done():
			case <-time.After(30 * time.Second):
				appLog.Warn("scheduled run still in progress at exit")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "Also run once immediately at startup")
	return cmd
}
