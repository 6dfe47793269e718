package aggregate

import "time"

// Accumulator holds the running duration per category for one week.
//
// It is a plain value: Add returns an updated copy, so two runs can never
// share totals by accident. The zero value is an empty week.
type Accumulator struct {
	totals [numCategories]time.Duration
}

// Add returns a copy of a with d added to c. Unknown codes land in Unclassified.
func (a Accumulator) Add(c Category, d time.Duration) Accumulator {
	a.totals[c.index()] += d
	return a
}

// AddEvent classifies title and adds d to the resulting bucket.
func (a Accumulator) AddEvent(title string, d time.Duration) (Accumulator, Category) {
	c := Classify(title)
	return a.Add(c, d), c
}

// Total is the accumulated time for c.
func (a Accumulator) Total(c Category) time.Duration {
	return a.totals[c.index()]
}

// WeeklyTotal sums every bucket except Unclassified.
func (a Accumulator) WeeklyTotal() time.Duration {
	var sum time.Duration
	for i, c := range categories {
		if c == Unclassified {
			continue
		}
		sum += a.totals[i]
	}
	return sum
}

// Elapsed sums every bucket, Unclassified included.
func (a Accumulator) Elapsed() time.Duration {
	var sum time.Duration
	for _, d := range a.totals {
		sum += d
	}
	return sum
}
