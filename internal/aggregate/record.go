package aggregate

import (
	"strconv"
	"time"
)

// Column names that follow the per-category labels in every row.
const (
	ColumnWeekStart       = "week_start"
	ColumnWeeklyDaysHours = "weekly_days_hours"
	ColumnWeeklyHours     = "weekly_hours"
)

// WeekStartLayout keys a record by its first day.
const WeekStartLayout = "2006-01-02"

// WeeklyRecord is the summary of one week, ready to be written out.
type WeeklyRecord struct {
	WeekStart time.Time
	Totals    Accumulator
}

// NewWeeklyRecord freezes acc for the week starting at w.Start.
func NewWeeklyRecord(w Window, acc Accumulator) WeeklyRecord {
	return WeeklyRecord{WeekStart: w.Start, Totals: acc}
}

// WeeklyTotal is the classified time of the week.
func (r WeeklyRecord) WeeklyTotal() time.Duration {
	return r.Totals.WeeklyTotal()
}

// WeeklyHours is WeeklyTotal in decimal hours.
func (r WeeklyRecord) WeeklyHours() float64 {
	return r.Totals.WeeklyTotal().Hours()
}

// Key is the week start date, e.g. "2018-01-08".
func (r WeeklyRecord) Key() string {
	return r.WeekStart.Format(WeekStartLayout)
}

// Header returns the column names matching Row.
func Header() []string {
	h := make([]string, 0, numCategories+3)
	h = append(h, ColumnWeekStart)
	for _, c := range categories {
		h = append(h, c.Label())
	}
	return append(h, ColumnWeeklyDaysHours, ColumnWeeklyHours)
}

// Row renders the record with DefaultDurationPattern.
func (r WeeklyRecord) Row() []string {
	row := make([]string, 0, numCategories+3)
	row = append(row, r.Key())
	for _, c := range categories {
		row = append(row, FormatDuration(r.Totals.Total(c), DefaultDurationPattern))
	}
	return append(row,
		FormatDuration(r.WeeklyTotal(), DefaultDurationPattern),
		strconv.FormatFloat(r.WeeklyHours(), 'f', -1, 64),
	)
}
