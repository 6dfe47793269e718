// Package job runs the weekly pipeline: fetch the week's events, total them
// per category and record the result.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesheet/internal/aggregate"
	"timesheet/internal/csvlog"
	appLog "timesheet/internal/log"
	"timesheet/internal/source"
)

// Recorder persists finished weeks; *history.Store implements it.
type Recorder interface {
	Save(ctx context.Context, rec aggregate.WeeklyRecord) error
}

// Options configures a single run.
type Options struct {
	// Reference picks the week: the window starts at the last WeekStart day
	// strictly before Reference's date. Zero means now.
	Reference time.Time
	// Location is the zone weeks are computed in. Nil means time.Local.
	Location *time.Location
	// WeekStart is a weekday name, default "monday".
	WeekStart string

	CSVPath       string
	IncludeAllDay bool
	DryRun        bool

	// History, when set, receives every recorded week.
	History Recorder

	now func() time.Time
}

// Result describes what a run did.
type Result struct {
	Window       aggregate.Window
	Record       aggregate.WeeklyRecord
	Events       int
	Unclassified []string
	Written      bool
}

// Run executes the pipeline once against src.
func Run(ctx context.Context, src source.Source, opts Options) (Result, error) {
	var res Result
	if src == nil {
		return res, errors.New("job: no source")
	}
	if !opts.DryRun && opts.CSVPath == "" {
		return res, errors.New("job: csv path is empty")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	ref := opts.Reference
	if ref.IsZero() {
		now := time.Now
		if opts.now != nil {
			now = opts.now
		}
		ref = now()
	}
	weekStart := opts.WeekStart
	if weekStart == "" {
		weekStart = "monday"
	}

	window, err := aggregate.WeekWindow(ref.In(loc), weekStart)
	if err != nil {
		return res, err
	}
	res.Window = window

	appLog.Info("fetching events", "source", src.Name(), "window", window.String())
	fetched, err := src.Fetch(ctx, window)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}

	events := source.InWindow(fetched, window, source.Filter{IncludeAllDay: opts.IncludeAllDay})
	res.Events = len(events)

	var acc aggregate.Accumulator
	for _, ev := range events {
		var c aggregate.Category
		acc, c = acc.AddEvent(ev.Title, ev.Duration())
		if c == aggregate.Unclassified {
			res.Unclassified = append(res.Unclassified, ev.Title)
		}
		appLog.Debug("event", "title", ev.Title, "category", c.String(), "duration", ev.Duration().String())
	}

	res.Record = aggregate.NewWeeklyRecord(window, acc)
	appLog.Info("week aggregated",
		"week", res.Record.Key(),
		"fetched", len(fetched),
		"counted", res.Events,
		"unclassified", len(res.Unclassified),
		"weekly_hours", res.Record.WeeklyHours(),
	)

	if opts.DryRun {
		return res, nil
	}

	// History before CSV: a failed save must not leave a CSV row behind.
	if opts.History != nil {
		if err := opts.History.Save(ctx, res.Record); err != nil {
			return res, fmt.Errorf("save history: %w", err)
		}
	}

	if err := csvlog.Append(opts.CSVPath, res.Record); err != nil {
		return res, err
	}
	res.Written = true
	return res, nil
}
