// Package aggregate buckets calendar time into work categories and sums it per week.
package aggregate

import "strings"

// Category is a work-type code taken from the prefix of an event title,
// e.g. "PW" in "PW: release checklist".
type Category string

const (
	ProjectSpecificMeetings Category = "PSM"
	OtherMeetings           Category = "OM"
	ProjectWork             Category = "PW"
	OtherWork               Category = "OW"
	Transformation          Category = "TR"
	Innovation              Category = "IN"
	PersonalDevelopment     Category = "PD"
	Mentoring               Category = "MT"
	ExemptHours             Category = "EH"
	AnnualLeave             Category = "AL"
	Unavailable             Category = "UN"
	Overtime                Category = "OT"
	Other                   Category = "OTH"

	// Unclassified collects events whose title has no known prefix. It is
	// reported like any other bucket but never counts towards the weekly total.
	Unclassified Category = "OTHN"
)

// categories is the closed set in CSV column order.
var categories = [...]Category{
	ProjectSpecificMeetings,
	OtherMeetings,
	ProjectWork,
	OtherWork,
	Transformation,
	Innovation,
	PersonalDevelopment,
	Mentoring,
	ExemptHours,
	AnnualLeave,
	Unavailable,
	Overtime,
	Other,
	Unclassified,
}

const numCategories = len(categories)

var labels = map[Category]string{
	ProjectSpecificMeetings: "Project Specific Meetings",
	OtherMeetings:           "Other Meetings",
	ProjectWork:             "Project Work",
	OtherWork:               "Other Work",
	Transformation:          "Transformation",
	Innovation:              "Innovation",
	PersonalDevelopment:     "Personal Development",
	Mentoring:               "Mentoring",
	ExemptHours:             "Exempt Hours",
	AnnualLeave:             "Annual Leave",
	Unavailable:             "Unavailable",
	Overtime:                "Overtime",
	Other:                   "Other",
	Unclassified:            "Other non mine",
}

// Categories returns every category, Unclassified last.
func Categories() []Category {
	out := make([]Category, numCategories)
	copy(out, categories[:])
	return out
}

// Label is the human-readable column name, or the raw code if unknown.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Known reports whether c is one of the fixed codes, Unclassified included.
func (c Category) Known() bool {
	_, ok := labels[c]
	return ok
}

func (c Category) String() string { return string(c) }

// index is the slot of c in the accumulator; unknown codes map to Unclassified.
func (c Category) index() int {
	for i, cc := range categories {
		if cc == c {
			return i
		}
	}
	return numCategories - 1
}

// Classify returns the category encoded before the first ':' of title.
//
// The prefix must match a code exactly, so "PSM : review" and "pw: x" are
// Unclassified, as are titles with no colon or an unknown code.
func Classify(title string) Category {
	prefix, _, found := strings.Cut(title, ":")
	if !found {
		return Unclassified
	}
	c := Category(prefix)
	if c == Unclassified || !c.Known() {
		return Unclassified
	}
	return c
}
