package cli

import (
	"context"
	"fmt"

	"timesheet/internal/config"
	"timesheet/internal/ews"
	"timesheet/internal/gcal"
	"timesheet/internal/history"
	"timesheet/internal/ics"
	"timesheet/internal/secret"
	"timesheet/internal/source"
)

// buildSource constructs the backend selected by cfg.Source.
func buildSource(ctx context.Context, cfg *config.Config) (source.Source, error) {
	switch cfg.Source {
	case source.KindICS:
		subs := make([]ics.Subscription, 0, len(cfg.ICS))
		for _, c := range cfg.ICS {
			subs = append(subs, ics.Subscription{ID: c.ID, URL: c.URL})
		}
		return ics.NewSource(ics.NewFetcher(cfg.CacheDir), subs, cfg.Location()), nil

	case source.KindGoogle:
		conf, err := gcal.LoadOAuthConfig(cfg.Google.ClientSecretFile)
		if err != nil {
			return nil, err
		}
		ts, err := gcal.TokenSource(ctx, conf, cfg.Google.TokenFile)
		if err != nil {
			return nil, err
		}
		client, err := gcal.NewClientWithToken(ctx, ts)
		if err != nil {
			return nil, err
		}
		return gcal.NewSource(client, cfg.Google.CalendarID), nil

	case source.KindExchange:
		login := cfg.Exchange.Login()
		pw, err := secret.Lookup(cfg.Exchange.KeyringService, login)
		if err != nil {
			return nil, err
		}
		return ews.NewSource(ews.NewClient(cfg.Exchange.URL, login, pw), cfg.Exchange.Email), nil
	}
	return nil, fmt.Errorf("unknown source %q (want one of %v)", cfg.Source, source.Kinds())
}

// openHistory opens the history store when history_db is configured.
// It returns nil, nil when history is disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	return history.Open(cfg.HistoryDB)
}
