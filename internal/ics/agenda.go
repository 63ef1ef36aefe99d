package ics

import (
	"time"

	"calshell/internal/dates"
	"calshell/internal/model"
)

// GroupByDay buckets occurrences into n consecutive days starting at the
// calendar day of first, in norm's location. An occurrence spanning several
// days is listed on each of them. today marks the matching day.
func GroupByDay(occ []model.Occurrence, norm dates.Normalizer, first time.Time, n int, today time.Time) []model.Day {
	if n <= 0 {
		return nil
	}
	days := make([]model.Day, n)
	index := make(map[string]int, n)
	todayKey := norm.Key(today)

	start := norm.Day(first)
	for i := range days {
		// AddDate keeps local midnight across DST changes.
		d := start.AddDate(0, 0, i)
		key := norm.Key(d)
		days[i] = model.Day{
			Key:     key,
			Date:    d,
			Today:   key == todayKey,
			Weekend: d.Weekday() == time.Saturday || d.Weekday() == time.Sunday,
		}
		index[key] = i
	}

	for _, o := range occ {
		for _, key := range dayKeys(o, norm) {
			i, ok := index[key]
			if !ok {
				continue
			}
			if o.AllDay {
				days[i].AllDay = append(days[i].AllDay, o)
			} else {
				days[i].Timed = append(days[i].Timed, o)
			}
		}
	}
	return days
}

// dayKeys lists the calendar days an occurrence touches. End is exclusive,
// so an event ending exactly at midnight does not spill into the next day.
func dayKeys(o model.Occurrence, norm dates.Normalizer) []string {
	first := norm.Day(o.Start)
	last := norm.Day(o.End)
	if o.End.After(o.Start) && o.End.Equal(last) {
		last = last.AddDate(0, 0, -1)
	}
	var keys []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		keys = append(keys, norm.Key(d))
		if len(keys) > 366 {
			break
		}
	}
	return keys
}

// WeekStart returns the first day of the week containing t. startDay is
// time.Monday or time.Sunday.
func WeekStart(t time.Time, norm dates.Normalizer, startDay time.Weekday) time.Time {
	d := norm.Day(t)
	offset := (int(d.Weekday()) - int(startDay) + 7) % 7
	return d.AddDate(0, 0, -offset)
}
