package dates

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q) = %v", name, err)
	}
	return loc
}

func TestParseBareDateKeepsCalendarDayInEveryZone(t *testing.T) {
	zones := []string{"UTC", "America/Los_Angeles", "Etc/GMT+12", "Pacific/Kiritimati", "Asia/Seoul"}
	inputs := []struct {
		in      string
		y, m, d int
	}{
		{"2024-01-15", 2024, 1, 15},
		{"2024-02-29", 2024, 2, 29},
		{"1999-12-31", 1999, 12, 31},
		{"2025-03-09", 2025, 3, 9}, // US DST switch day
	}
	for _, zone := range zones {
		loc := mustLoad(t, zone)
		n := New(loc)
		for _, tc := range inputs {
			got := n.Parse(tc.in)
			if got.Location() != loc {
				t.Fatalf("%s: Parse(%q) location = %v, want %v", zone, tc.in, got.Location(), loc)
			}
			if got.Year() != tc.y || int(got.Month()) != tc.m || got.Day() != tc.d {
				t.Fatalf("%s: Parse(%q) = %v, want %04d-%02d-%02d", zone, tc.in, got, tc.y, tc.m, tc.d)
			}
			if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
				t.Fatalf("%s: Parse(%q) = %v, want local midnight", zone, tc.in, got)
			}
		}
	}
}

func TestParseBareDateNegativeOffsetDoesNotShiftBack(t *testing.T) {
	n := New(mustLoad(t, "America/New_York"))
	if got := n.Parse("2024-01-15").Day(); got != 15 {
		t.Fatalf("day = %d, want 15", got)
	}
}

func TestParseDateTimeUsesEmbeddedOffset(t *testing.T) {
	n := New(mustLoad(t, "Asia/Seoul"))
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T10:00:00Z", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"2024-01-15T10:00:00.250+02:00", time.Date(2024, 1, 15, 8, 0, 0, 250_000_000, time.UTC)},
		{"2024-01-15 10:00:00-05:00", time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := n.Parse(tc.in)
		if !got.Equal(tc.want) {
			t.Fatalf("Parse(%q) = %v, want instant %v", tc.in, got, tc.want)
		}
		std, err := time.Parse(time.RFC3339Nano, strings.ReplaceAll(tc.in, " ", "T"))
		if err != nil {
			t.Fatalf("time.Parse(%q) = %v", tc.in, err)
		}
		if !got.Equal(std) {
			t.Fatalf("Parse(%q) = %v, standard parse gives %v", tc.in, got, std)
		}
	}
}

func TestParseDateTimeWithoutOffsetIsLocal(t *testing.T) {
	loc := mustLoad(t, "America/Los_Angeles")
	n := New(loc)

	got := n.Parse("2024-07-04T09:30")
	want := time.Date(2024, 7, 4, 9, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}

	got = n.Parse("2024-07-04 09:30:15")
	want = time.Date(2024, 7, 4, 9, 30, 15, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
}

func TestParseEmptyReturnsNow(t *testing.T) {
	before := time.Now()
	got := Parse("")
	after := time.Now()
	if got.Before(before.Add(-5*time.Millisecond)) || got.After(after.Add(5*time.Millisecond)) {
		t.Fatalf("Parse(\"\") = %v, want between %v and %v", got, before, after)
	}
}

func TestParseEmptyUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	n := Normalizer{Location: time.UTC, Now: func() time.Time { return fixed }}
	if got := n.Parse(""); !got.Equal(fixed) {
		t.Fatalf("Parse(\"\") = %v, want %v", got, fixed)
	}
}

func TestParseRollsOverOutOfRangeComponents(t *testing.T) {
	n := New(time.UTC)
	cases := map[string]string{
		"2024-01-32": "2024-02-01",
		"2024-13-01": "2025-01-01",
		"2023-02-29": "2023-03-01",
		"2024-03-00": "2024-02-29",
	}
	for in, want := range cases {
		if got := n.Parse(in).Format(DayLayout); got != want {
			t.Fatalf("Parse(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseMalformedReturnsZero(t *testing.T) {
	n := New(time.UTC)
	for _, in := range []string{"2024-01", "2024/01/15", "abcd-ef-gh", "2024-01-15-01", "2024-01-15Tnope"} {
		if got := n.Parse(in); !got.IsZero() {
			t.Fatalf("Parse(%q) = %v, want zero time", in, got)
		}
	}
}

func TestParseStrict(t *testing.T) {
	loc := mustLoad(t, "Asia/Seoul")
	n := New(loc)

	got, err := n.ParseStrict("2024-01-15")
	if err != nil {
		t.Fatalf("ParseStrict = %v", err)
	}
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("ParseStrict = %v, want %v", got, want)
	}

	for _, in := range []string{"", "2024-01-32", "2024-13-01", "2023-02-29", "2024-1", "x"} {
		if _, err := n.ParseStrict(in); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseStrict(%q) err = %v, want ErrInvalidDate", in, err)
		}
	}
}

func TestKeyRoundTrip(t *testing.T) {
	loc := mustLoad(t, "Pacific/Auckland")
	n := New(loc)
	instant := time.Date(2024, 6, 30, 13, 0, 0, 0, time.UTC) // July 1 in Auckland

	key := n.Key(instant)
	if key != "2024-07-01" {
		t.Fatalf("Key = %s, want 2024-07-01", key)
	}
	if got := n.Parse(key); !got.Equal(n.Day(instant)) {
		t.Fatalf("Parse(Key) = %v, want %v", got, n.Day(instant))
	}
}
