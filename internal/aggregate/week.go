package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownWeekday is returned for names that are not English weekdays.
var ErrUnknownWeekday = errors.New("unknown weekday")

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// ParseWeekday accepts full English names or three-letter abbreviations, in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n == full || n == full[:3] {
				return d, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
}

// PreviousWeekday returns midnight (in ref's location) of the last day named
// name that falls strictly before ref's date. When ref is itself that weekday
// the result is a full week earlier, so a Monday run targets the week that
// just ended rather than the one starting today.
func PreviousWeekday(name string, ref time.Time) (time.Time, error) {
	target, err := ParseWeekday(name)
	if err != nil {
		return time.Time{}, err
	}
	daysAgo := (7 + int(ref.Weekday()) - int(target)) % 7
	if daysAgo == 0 {
		daysAgo = 7
	}
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return day.AddDate(0, 0, -daysAgo), nil
}

// WeekWindow is the seven calendar days starting at PreviousWeekday(weekStart, ref).
func WeekWindow(ref time.Time, weekStart string) (Window, error) {
	start, err := PreviousWeekday(weekStart, ref)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: start.AddDate(0, 0, 7)}, nil
}
