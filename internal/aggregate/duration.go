package aggregate

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDurationPattern is the layout used for every duration column in the CSV.
const DefaultDurationPattern = "%D days %H:%M:%S"

// FormatDuration renders d using a %-template:
//
//	%D  whole days (not padded)
//	%H  hours within the day, 00-23
//	%M  minutes, 00-59
//	%S  seconds, 00-59
//	%%  a literal percent sign
//
// Other %x sequences are copied as-is. Sub-second precision is truncated and
// negative durations are rendered as "-" followed by the absolute value.
func FormatDuration(d time.Duration, pattern string) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	minutes := secs / 60
	secs %= 60

	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		if ch != '%' || i+1 == len(pattern) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch pattern[i] {
		case 'D':
			b.WriteString(strconv.FormatInt(days, 10))
		case 'H':
			writePadded(&b, hours)
		case 'M':
			writePadded(&b, minutes)
		case 'S':
			writePadded(&b, secs)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}
	return b.String()
}

func writePadded(b *strings.Builder, n int64) {
	if n < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(n, 10))
}

