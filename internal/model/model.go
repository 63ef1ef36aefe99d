package model

import "time"

// Occurrence is a single concrete instance of an event after recurrence
// expansion and timezone normalization.
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey identifies one instance of a recurring event; it is the
	// local start time in RFC3339.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Highlight is set when the summary matches a configured keyword.
	Highlight bool

	// Start / End are in the display timezone. For all-day events they are
	// local midnights and End is exclusive.
	Start time.Time
	End   time.Time
}

// Day is one calendar day of an agenda.
type Day struct {
	// Key is the day in YYYY-MM-DD form.
	Key  string
	Date time.Time

	Today   bool
	Weekend bool

	AllDay []Occurrence
	Timed  []Occurrence
}

// Empty reports whether the day has no occurrences.
func (d Day) Empty() bool {
	return len(d.AllDay) == 0 && len(d.Timed) == 0
}
