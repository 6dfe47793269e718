// Package ews reads calendar items from Exchange Web Services.
package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"timesheet/internal/aggregate"
	appLog "timesheet/internal/log"
	"timesheet/internal/model"
)

const (
	soapContentType = "text/xml; charset=utf-8"
	ewsTimeLayout   = "2006-01-02T15:04:05Z"
	maxBodyBytes    = 16 << 20
)

// findItemTemplate is a FindItem request with a CalendarView over the
// default calendar of the given mailbox.
const findItemTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
  <soap:Header>
    <t:RequestServerVersion Version="Exchange2010_SP2"/>
  </soap:Header>
  <soap:Body>
    <m:FindItem Traversal="Shallow">
      <m:ItemShape>
        <t:BaseShape>IdOnly</t:BaseShape>
        <t:AdditionalProperties>
          <t:FieldURI FieldURI="item:Subject"/>
          <t:FieldURI FieldURI="calendar:Start"/>
          <t:FieldURI FieldURI="calendar:End"/>
          <t:FieldURI FieldURI="calendar:IsAllDayEvent"/>
          <t:FieldURI FieldURI="calendar:Location"/>
        </t:AdditionalProperties>
      </m:ItemShape>
      <m:CalendarView StartDate="%s" EndDate="%s"/>
      <m:ParentFolderIds>
        <t:DistinguishedFolderId Id="calendar">%s</t:DistinguishedFolderId>
      </m:ParentFolderIds>
    </m:FindItem>
  </soap:Body>
</soap:Envelope>`

// ResponseError is a SOAP fault or a FindItem message with ResponseClass="Error".
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("ews: %s: %s", e.Code, e.Message)
}

type envelope struct {
	XMLName  xml.Name          `xml:"Envelope"`
	Fault    *soapFault        `xml:"Body>Fault"`
	Messages []findItemMessage `xml:"Body>FindItemResponse>ResponseMessages>FindItemResponseMessage"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type findItemMessage struct {
	ResponseClass string         `xml:"ResponseClass,attr"`
	ResponseCode  string         `xml:"ResponseCode"`
	MessageText   string         `xml:"MessageText"`
	Items         []calendarItem `xml:"RootFolder>Items>CalendarItem"`
}

type calendarItem struct {
	ItemID struct {
		ID string `xml:"Id,attr"`
	} `xml:"ItemId"`
	Subject       string `xml:"Subject"`
	Location      string `xml:"Location"`
	Start         string `xml:"Start"`
	End           string `xml:"End"`
	IsAllDayEvent bool   `xml:"IsAllDayEvent"`
}

// Client talks to a single EWS endpoint with Basic authentication.
type Client struct {
	url      string
	username string
	password string
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// NewClient creates a client for the Exchange.asmx endpoint at url.
func NewClient(url, username, password string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		username: username,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindCalendarItems lists the calendar items of mailbox (the authenticated
// user when empty) that overlap window. Times are returned in the window's
// location.
func (c *Client) FindCalendarItems(ctx context.Context, mailbox string, window aggregate.Window) ([]model.Event, error) {
	mbx := ""
	if mailbox != "" {
		mbx = "<t:Mailbox><t:EmailAddress>" + html.EscapeString(mailbox) + "</t:EmailAddress></t:Mailbox>"
	}
	body := fmt.Sprintf(findItemTemplate,
		window.Start.UTC().Format(ewsTimeLayout),
		window.End.UTC().Format(ewsTimeLayout),
		mbx,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", soapContentType)

	appLog.Debug("ews: FindItem", "url", appLog.RedactURL(c.url), "window", window.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ews request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("ews: authentication failed for %s (HTTP 401)", c.username)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("ews read body: %w", err)
	}

	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ews: unexpected status %s", resp.Status)
		}
		return nil, fmt.Errorf("ews decode response: %w", err)
	}
	if env.Fault != nil {
		return nil, &ResponseError{Code: env.Fault.Code, Message: env.Fault.String}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ews: unexpected status %s", resp.Status)
	}

	loc := window.Start.Location()
	var out []model.Event
	for _, msg := range env.Messages {
		if msg.ResponseClass == "Error" {
			return nil, &ResponseError{Code: msg.ResponseCode, Message: msg.MessageText}
		}
		for _, it := range msg.Items {
			ev, err := it.toEvent(mailbox, loc)
			if err != nil {
				return nil, fmt.Errorf("ews: calendar item %s: %w", it.ItemID.ID, err)
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

func (it calendarItem) toEvent(sourceID string, loc *time.Location) (model.Event, error) {
	start, err := time.Parse(time.RFC3339, it.Start)
	if err != nil {
		return model.Event{}, fmt.Errorf("start %q: %w", it.Start, err)
	}
	end, err := time.Parse(time.RFC3339, it.End)
	if err != nil {
		return model.Event{}, fmt.Errorf("end %q: %w", it.End, err)
	}
	return model.Event{
		SourceID: sourceID,
		UID:      it.ItemID.ID,
		Title:    it.Subject,
		Location: it.Location,
		AllDay:   it.IsAllDayEvent,
		Start:    start.In(loc),
		End:      end.In(loc),
	}, nil
}
