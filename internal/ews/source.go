package ews

import (
	"context"

	"timesheet/internal/aggregate"
	appLog "timesheet/internal/log"
	"timesheet/internal/model"
	"timesheet/internal/source"
)

// Source adapts a Client to source.Source for one mailbox.
type Source struct {
	client  *Client
	mailbox string
}

var _ source.Source = (*Source)(nil)

func NewSource(client *Client, mailbox string) *Source {
	return &Source{client: client, mailbox: mailbox}
}

func (s *Source) Name() string { return source.KindExchange }

func (s *Source) Fetch(ctx context.Context, window aggregate.Window) ([]model.Event, error) {
	evs, err := s.client.FindCalendarItems(ctx, s.mailbox, window)
	if err != nil {
		return nil, err
	}
	appLog.Info("ews calendar items found", "mailbox", s.mailbox, "count", len(evs))
	return evs, nil
}
