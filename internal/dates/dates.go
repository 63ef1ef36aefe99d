// Package dates turns date-like strings coming from URLs, forms and feeds
// into time.Time values anchored to a display location.
//
// A bare "YYYY-MM-DD" is always built from its components in the target
// location, never parsed as UTC midnight, so the calendar day read back in
// that location is the day that was written.
package dates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the bare calendar date form used in URLs and day keys.
const DayLayout = "2006-01-02"

// ErrInvalidDate is returned by ParseStrict for malformed or out-of-range input.
var ErrInvalidDate = errors.New("dates: invalid date")

// dateTimeLayouts are tried in order for inputs that carry a time marker.
// Layouts without an offset are read in the normalizer's location.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Normalizer parses date inputs relative to a location and a clock.
// The zero value uses time.Local and time.Now.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a Normalizer for loc (time.Local when nil).
func New(loc *time.Location) Normalizer {
	return Normalizer{Location: loc}
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().In(n.location())
	}
	return n.Now().In(n.location())
}

// Parse converts s into a time:
//   - "" returns the current time;
//   - input containing 'T' or ' ' is parsed as a full date-time;
//   - anything else is split on '-' into year, month and day and built as
//     midnight of that day in the normalizer's location.
//
// Components are not range checked; time.Date rolls them over (day 32 of
// January is February 1). Input that does not yield three integers, or a
// date-time no layout accepts, returns the zero time.
func (n Normalizer) Parse(s string) time.Time {
	if s == "" {
		return n.now()
	}
	if hasTimeMarker(s) {
		t, _ := n.parseDateTime(s)
		return t
	}
	y, m, d, ok := splitDay(s)
	if !ok {
		return time.Time{}
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, n.location())
}

// ParseStrict is Parse with validation: empty input, malformed strings and
// out-of-range components return ErrInvalidDate instead of rolling over.
func (n Normalizer) ParseStrict(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if hasTimeMarker(s) {
		t, err := n.parseDateTime(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return t, nil
	}
	y, m, d, ok := splitDay(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, n.location())
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: %q out of range", ErrInvalidDate, s)
	}
	return t, nil
}

// Day returns local midnight of the calendar day containing t, read in the
// normalizer's location.
func (n Normalizer) Day(t time.Time) time.Time {
	t = t.In(n.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.location())
}

// Key formats the calendar day of t in the normalizer's location. Parse
// of the returned key yields Day(t).
func (n Normalizer) Key(t time.Time) string {
	return t.In(n.location()).Format(DayLayout)
}

func (n Normalizer) parseDateTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, s, n.location())
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func hasTimeMarker(s string) bool {
	return strings.ContainsAny(s, "T ")
}

// splitDay splits "Y-M-D" into exactly three integers.
func splitDay(s string) (y, m, d int, ok bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var nums [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = v
	}
	return nums[0], nums[1], nums[2], true
}

// Parse normalizes s against time.Local.
func Parse(s string) time.Time {
	return Normalizer{}.Parse(s)
}
