// Package source defines the one capability every calendar backend offers the
// weekly job: list the events of a time window.
package source

import (
	"context"
	"sort"

	"timesheet/internal/aggregate"
	"timesheet/internal/model"
)

// Source names accepted in config and on the command line.
const (
	KindICS      = "ics"
	KindGoogle   = "google"
	KindExchange = "exchange"
)

// Kinds lists the supported backends.
func Kinds() []string {
	return []string{KindICS, KindGoogle, KindExchange}
}

// Source fetches events from one calendar backend.
type Source interface {
	Name() string
	Fetch(ctx context.Context, window aggregate.Window) ([]model.Event, error)
}

// Filter controls which fetched events are counted.
type Filter struct {
	IncludeAllDay bool
}

// InWindow keeps events starting inside w and returns them ordered by start.
// An event that runs past w.End still counts in full.
func InWindow(events []model.Event, w aggregate.Window, f Filter) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay && !f.IncludeAllDay {
			continue
		}
		if !w.Contains(ev.Start) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
