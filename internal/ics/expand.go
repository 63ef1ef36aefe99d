package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"calshell/internal/dates"
	appLog "calshell/internal/log"
	"calshell/internal/model"
)

const defaultMaxPerEvent = 5000

// Window selects which occurrences Expand produces.
type Window struct {
	// Location is the display zone; nil means time.Local.
	Location *time.Location

	// Start / End bound the window; an occurrence is kept when it overlaps.
	Start time.Time
	End   time.Time

	// MaxPerEvent caps the instances of one recurring event.
	MaxPerEvent int

	// Highlight keywords mark occurrences whose summary contains one.
	Highlight []string
}

// Expansion is the result of Expand.
type Expansion struct {
	Occurrences []model.Occurrence
	// Truncated lists UIDs that hit MaxPerEvent.
	Truncated []string
}

// Expand turns events into concrete occurrences inside w, applying RRULE,
// EXDATE and RECURRENCE-ID overrides. Results are sorted by start.
func Expand(events []Event, w Window) (Expansion, error) {
	var out Expansion
	if w.End.Before(w.Start) {
		return out, errors.New("ics: window end before start")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}
	norm := dates.New(w.Location)

	bases := make(map[string][]Event)
	overrides := make(map[string][]Event)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range uids {
		capped := false
		for _, ev := range bases[uid] {
			occ, hit := expandOne(ev, overrides[uid], w, norm)
			capped = capped || hit
			out.Occurrences = append(out.Occurrences, occ...)
		}
		if capped {
			out.Truncated = append(out.Truncated, uid)
			appLog.Warn("ics expansion capped", "uid", uid, "cap", w.MaxPerEvent)
		}
	}

	// Overrides whose base event is missing still describe a real instance.
	for uid, ovs := range overrides {
		if _, ok := bases[uid]; ok {
			continue
		}
		for _, ov := range ovs {
			if o, ok := occurrence(ov, ov.Start, ov.End, w, norm); ok {
				out.Occurrences = append(out.Occurrences, o)
			}
		}
	}

	sort.SliceStable(out.Occurrences, func(i, j int) bool {
		a, b := out.Occurrences[i], out.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		return a.Summary < b.Summary
	})
	return out, nil
}

func expandOne(ev Event, overrides []Event, w Window, norm dates.Normalizer) ([]model.Occurrence, bool) {
	var out []model.Occurrence
	emit := func(start, end time.Time) {
		src := ev
		if ov, ok := findOverride(overrides, start); ok {
			src, start, end = ov, ov.Start, ov.End
		}
		if o, ok := occurrence(src, start, end, w, norm); ok {
			out = append(out, o)
		}
	}

	if ev.RRule == "" {
		emit(ev.Start, ev.End)
		return out, false
	}

	opt, err := rrule.StrToROption(ev.RRule)
	if err != nil {
		appLog.Error("ics bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return out, false
	}
	opt.Dtstart = ev.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("ics bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return out, false
	}

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen by the event's duration plus a day so long and all-day
	// instances that began before the window are still considered.
	dur := ev.End.Sub(ev.Start)
	from := w.Start.Add(-dur).AddDate(0, 0, -1).In(ev.Start.Location())
	to := w.End.AddDate(0, 0, 1).In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hit := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		hit = true
	}
	for _, s := range starts {
		emit(s, s.Add(dur))
	}
	return out, hit
}

// findOverride matches an override by its RECURRENCE-ID instant.
func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return Event{}, false
}

// occurrence builds a display-zone occurrence and reports whether it
// overlaps the window. All-day bounds are re-anchored by calendar day so a
// date never shifts when the display zone is behind UTC.
func occurrence(ev Event, start, end time.Time, w Window, norm dates.Normalizer) (model.Occurrence, bool) {
	if ev.AllDay {
		start = norm.Parse(start.UTC().Format(dates.DayLayout))
		end = norm.Parse(end.UTC().Format(dates.DayLayout))
	} else {
		start = start.In(w.Location)
		end = end.In(w.Location)
	}
	if !overlaps(start, end, w.Start, w.End) {
		return model.Occurrence{}, false
	}
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Highlight:   matchesAny(ev.Summary, w.Highlight),
		Start:       start,
		End:         end,
	}, true
}

// overlaps treats [aStart, aEnd) against [bStart, bEnd); zero-length events
// count when their instant falls inside.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func matchesAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
