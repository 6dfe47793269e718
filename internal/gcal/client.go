package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"timesheet/internal/aggregate"
	appLog "timesheet/internal/log"
	"timesheet/internal/model"
	"timesheet/internal/source"
)

// Client wraps the Google Calendar service.
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client. Production callers pass
// option.WithTokenSource; tests point option.WithEndpoint at a fake server.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewClientWithToken is NewClient authenticated with a stored user token.
func NewClientWithToken(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return NewClient(ctx, option.WithTokenSource(ts))
}

// ListEvents lists every event instance in calendarID that overlaps window.
// Recurring series are expanded server-side (singleEvents=true).
func (c *Client) ListEvents(ctx context.Context, calendarID string, window aggregate.Window) ([]model.Event, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var out []model.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item == nil || item.Status == "cancelled" {
				continue
			}
			ev, err := toEvent(calendarID, item, window.Start.Location())
			if err != nil {
				return fmt.Errorf("event %s: %w", item.Id, err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// toEvent converts an API event. Timed events carry RFC3339 dateTime values;
// all-day events only have a date, read in loc.
func toEvent(calendarID string, item *calendar.Event, loc *time.Location) (model.Event, error) {
	ev := model.Event{
		SourceID: calendarID,
		UID:      item.Id,
		Title:    item.Summary,
		Location: item.Location,
	}
	if item.Start == nil || item.End == nil {
		return ev, errors.New("missing start or end")
	}

	if item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return ev, fmt.Errorf("start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return ev, fmt.Errorf("end: %w", err)
		}
		ev.Start, ev.End = start.In(loc), end.In(loc)
		return ev, nil
	}

	start, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
	if err != nil {
		return ev, fmt.Errorf("start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", item.End.Date, loc)
	if err != nil {
		return ev, fmt.Errorf("end date: %w", err)
	}
	ev.Start, ev.End, ev.AllDay = start, end, true
	return ev, nil
}

// Source adapts a Client to source.Source for one calendar.
type Source struct {
	client     *Client
	calendarID string
}

var _ source.Source = (*Source)(nil)

// NewSource reads calendarID ("primary" for the user's main calendar).
func NewSource(client *Client, calendarID string) *Source {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Source{client: client, calendarID: calendarID}
}

func (s *Source) Name() string { return source.KindGoogle }

func (s *Source) Fetch(ctx context.Context, window aggregate.Window) ([]model.Event, error) {
	evs, err := s.client.ListEvents(ctx, s.calendarID, window)
	if err != nil {
		return nil, err
	}
	appLog.Info("gcal events listed", "calendar", s.calendarID, "count", len(evs))
	return evs, nil
}
