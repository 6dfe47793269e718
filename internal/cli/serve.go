package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "timesheet/internal/log"
	"timesheet/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded weeks as a read-only JSON API",
		Long: `Start an HTTP server exposing:
  GET /health              liveness, never authenticated
  GET /api/weeks           every recorded week, newest first
  GET /api/weeks/latest    the most recent week
  GET /api/weeks/{date}    one week by its start date (YYYY-MM-DD)

The /api endpoints need history_db to be configured and honour basic_auth.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			var weeks web.WeekStore
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				weeks = store
			} else {
				appLog.Warn("history_db is not set; /api endpoints will return 503")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return web.Serve(ctx, cfg, weeks)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
