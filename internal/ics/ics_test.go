package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"

	"calshell/internal/dates"
	"calshell/internal/model"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

var sampleFeed = crlf(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//calshell//test//EN",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"SUMMARY:Standup",
	"DTSTART:20240101T090000Z",
	"DTEND:20240101T100000Z",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE:20240108T090000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"SUMMARY:Moved standup",
	"RECURRENCE-ID:20240115T090000Z",
	"DTSTART:20240115T140000Z",
	"DTEND:20240115T150000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:trip@example.com",
	"SUMMARY:휴가 trip",
	"DTSTART;VALUE=DATE:20240110",
	"DTEND;VALUE=DATE:20240112",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"SUMMARY:No uid",
	"DTSTART:20240103T090000Z",
	"END:VEVENT",
	"END:VCALENDAR",
)

func laWindow(t *testing.T) (Window, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation() = %v", err)
	}
	return Window{
		Location:  loc,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		End:       time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
		Highlight: []string{"휴가"},
	}, loc
}

func TestParseSkipsEventsWithoutUID(t *testing.T) {
	events, err := Parse(Source{ID: "work"}, sampleFeed)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].RRule != "FREQ=WEEKLY;COUNT=4" || len(events[0].ExDates) != 1 {
		t.Fatalf("recurring event = %+v", events[0])
	}
	if !events[1].IsOverride() {
		t.Fatalf("expected override, got %+v", events[1])
	}
	if !events[2].AllDay {
		t.Fatalf("expected all-day, got %+v", events[2])
	}
}

func TestParseEmptyBody(t *testing.T) {
	if _, err := Parse(Source{ID: "x"}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExpandAppliesExdateAndOverride(t *testing.T) {
	events, err := Parse(Source{ID: "work"}, sampleFeed)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	w, loc := laWindow(t)

	got, err := Expand(events, w)
	if err != nil {
		t.Fatalf("Expand() = %v", err)
	}

	var summaries []string
	for _, o := range got.Occurrences {
		summaries = append(summaries, o.Summary)
	}
	want := []string{"Standup", "휴가 trip", "Moved standup", "Standup"}
	if diff := cmp.Diff(want, summaries); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}

	first := got.Occurrences[0]
	if first.Start.Location() != loc || first.Start.Hour() != 1 {
		t.Fatalf("first start = %v, want 01:00 in LA", first.Start)
	}
	if got.Occurrences[2].Start.Day() != 15 || got.Occurrences[2].Start.Hour() != 6 {
		t.Fatalf("override start = %v, want Jan 15 06:00 LA", got.Occurrences[2].Start)
	}
	if len(got.Truncated) != 0 {
		t.Fatalf("Truncated = %v", got.Truncated)
	}
}

func TestExpandAllDayKeepsCalendarDayBehindUTC(t *testing.T) {
	events, err := Parse(Source{ID: "work"}, sampleFeed)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	w, loc := laWindow(t)
	got, err := Expand(events, w)
	if err != nil {
		t.Fatalf("Expand() = %v", err)
	}

	var trip model.Occurrence
	for _, o := range got.Occurrences {
		if o.AllDay {
			trip = o
		}
	}
	wantStart := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2024, 1, 12, 0, 0, 0, 0, loc)
	if !trip.Start.Equal(wantStart) || !trip.End.Equal(wantEnd) {
		t.Fatalf("trip = %v..%v, want %v..%v", trip.Start, trip.End, wantStart, wantEnd)
	}
	if !trip.Highlight {
		t.Fatal("expected highlight keyword match")
	}
}

func TestExpandCapsRecurrences(t *testing.T) {
	ev := Event{
		Source: Source{ID: "s"},
		UID:    "daily",
		Start:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		RRule:  "FREQ=DAILY",
	}
	got, err := Expand([]Event{ev}, Window{
		Location:    time.UTC,
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MaxPerEvent: 10,
	})
	if err != nil {
		t.Fatalf("Expand() = %v", err)
	}
	if len(got.Occurrences) != 10 {
		t.Fatalf("len = %d, want 10", len(got.Occurrences))
	}
	if diff := cmp.Diff([]string{"daily"}, got.Truncated); diff != "" {
		t.Fatalf("Truncated mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	now := time.Now()
	if _, err := Expand(nil, Window{Start: now, End: now.Add(-time.Hour)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGroupByDay(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")
	norm := dates.New(loc)
	occ := []model.Occurrence{
		{Summary: "trip", AllDay: true,
			Start: time.Date(2024, 1, 10, 0, 0, 0, 0, loc), End: time.Date(2024, 1, 12, 0, 0, 0, 0, loc)},
		{Summary: "late",
			Start: time.Date(2024, 1, 10, 22, 0, 0, 0, loc), End: time.Date(2024, 1, 11, 2, 0, 0, 0, loc)},
		{Summary: "outside",
			Start: time.Date(2024, 1, 20, 9, 0, 0, 0, loc), End: time.Date(2024, 1, 20, 10, 0, 0, 0, loc)},
	}

	days := GroupByDay(occ, norm, norm.Parse("2024-01-10"), 3, time.Date(2024, 1, 11, 12, 0, 0, 0, loc))

	var keys []string
	for _, d := range days {
		keys = append(keys, d.Key)
	}
	if diff := cmp.Diff([]string{"2024-01-10", "2024-01-11", "2024-01-12"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if len(days[0].AllDay) != 1 || len(days[0].Timed) != 1 {
		t.Fatalf("day0 = %+v", days[0])
	}
	if len(days[1].AllDay) != 1 || len(days[1].Timed) != 1 || !days[1].Today {
		t.Fatalf("day1 = %+v", days[1])
	}
	if !days[2].Empty() {
		t.Fatalf("day2 should be empty, got %+v", days[2])
	}
}

func TestWeekStart(t *testing.T) {
	norm := dates.New(time.UTC)
	wed := norm.Parse("2024-01-17")
	if got := norm.Key(WeekStart(wed, norm, time.Monday)); got != "2024-01-15" {
		t.Fatalf("monday week start = %s", got)
	}
	if got := norm.Key(WeekStart(wed, norm, time.Sunday)); got != "2024-01-14" {
		t.Fatalf("sunday week start = %s", got)
	}
}

func TestFetchUsesValidatorsAndFallsBack(t *testing.T) {
	var fail atomic.Bool
	var conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(sampleFeed)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/private/token.ics"}
	ctx := context.Background()

	feed, err := f.Fetch(ctx, src)
	if err != nil || feed.Stale {
		t.Fatalf("first Fetch = %+v, %v", feed.Stale, err)
	}

	feed, err = f.Fetch(ctx, src)
	if err != nil || !feed.Stale || conditional.Load() != 1 {
		t.Fatalf("second Fetch stale=%v err=%v conditional=%d", feed.Stale, err, conditional.Load())
	}
	if string(feed.Body) != string(sampleFeed) {
		t.Fatal("cached body mismatch")
	}

	fail.Store(true)
	feed, err = f.Fetch(ctx, src)
	if err != nil || !feed.Stale {
		t.Fatalf("fallback Fetch stale=%v err=%v", feed.Stale, err)
	}

	fresh := NewFetcher(t.TempDir(), srv.Client())
	feeds, errs := fresh.FetchAll(ctx, []Source{src, {ID: "blank"}})
	if len(feeds) != 0 || len(errs) != 2 {
		t.Fatalf("FetchAll feeds=%d errs=%d", len(feeds), len(errs))
	}
}

func TestRedactURL(t *testing.T) {
	if got := RedactURL("https://cal.example.com/private/abc.ics?token=1"); got != "https://cal.example.com/...(redacted)" {
		t.Fatalf("RedactURL = %q", got)
	}
	if got := RedactURL("not a url"); got != "ics://...(redacted)" {
		t.Fatalf("RedactURL = %q", got)
	}
}
