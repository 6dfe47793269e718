package model

import "time"

// Event is a single concrete calendar entry as seen by the aggregator. Source
// adapters produce these after any recurrence expansion, so a weekly meeting
// shows up once per occurrence.
type Event struct {
	SourceID string // calendar source ID (config ICS ID, Google calendar ID, EWS mailbox)
	UID      string // provider identifier; for ICS occurrences the UID plus start time

	Title    string
	Location string

	AllDay bool

	Start time.Time
	End   time.Time
}

// Duration is End minus Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
