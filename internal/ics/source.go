package ics

import (
	"context"
	"errors"
	"time"

	"timesheet/internal/aggregate"
	appLog "timesheet/internal/log"
	"timesheet/internal/model"
	"timesheet/internal/source"
)

// Source reads one or more ICS subscriptions and expands them into a window.
type Source struct {
	fetcher *Fetcher
	subs    []Subscription
	loc     *time.Location
}

var _ source.Source = (*Source)(nil)

// NewSource builds an ICS-backed source. loc is used for floating times and
// for the returned events.
func NewSource(fetcher *Fetcher, subs []Subscription, loc *time.Location) *Source {
	return &Source{fetcher: fetcher, subs: subs, loc: loc}
}

func (s *Source) Name() string { return source.KindICS }

// Fetch downloads every subscription, parses it and expands recurrences.
// Any failed subscription or malformed event fails the whole fetch.
func (s *Source) Fetch(ctx context.Context, window aggregate.Window) ([]model.Event, error) {
	if len(s.subs) == 0 {
		return nil, errors.New("ics: no subscriptions configured")
	}

	results, errs := s.fetcher.FetchAll(ctx, s.subs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		evs, err := ParseICS(res.Subscription, res.Body, s.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, evs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{Location: s.loc, Window: window})
	if err != nil {
		return nil, err
	}

	appLog.Info("ics events expanded",
		"subscriptions", len(s.subs),
		"parsed", len(parsed),
		"occurrences", len(expanded.Events),
	)
	return expanded.Events, nil
}
