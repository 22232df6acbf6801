// Package schedule holds calendar events and the date arithmetic behind the
// month grid: which days an event covers, how multi-day events are laid out
// as bars across a week, and the list and iCalendar views.
package schedule

import (
	"sort"
	"time"
)

// Event is one entry of the church calendar.
//
// All-day events carry their dates in Start and End with no meaningful
// clock time, and End is the last day of the event (inclusive). Timed
// events use instants and End is exclusive.
type Event struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Location    string
	Category    string
	Description string
	URL         string
}

// Normalize repairs a missing or inverted end: all-day events end on their
// start day, timed events last one hour.
func Normalize(e Event) Event {
	if e.End.IsZero() || e.End.Before(e.Start) {
		if e.AllDay {
			e.End = e.Start
		} else {
			e.End = e.Start.Add(time.Hour)
		}
	}
	return e
}

// Date returns midnight of t's calendar day in loc.
func Date(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// civil returns midnight of the date components of t, ignoring its zone.
func civil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaySpan returns the first and last calendar days (midnight in loc) that e
// covers. A timed event ending exactly at midnight does not cover the day
// that midnight begins.
func DaySpan(e Event, loc *time.Location) (first, last time.Time) {
	e = Normalize(e)
	if e.AllDay {
		return civil(e.Start, loc), civil(e.End, loc)
	}
	first = Date(e.Start, loc)
	last = Date(e.End, loc)
	if e.End.In(loc).Equal(last) && last.After(first) {
		last = last.AddDate(0, 0, -1)
	}
	return first, last
}

// Interval returns the half-open instant range [start, end) of e in loc.
// All-day events run from midnight of their first day to midnight after
// their last.
func Interval(e Event, loc *time.Location) (start, end time.Time) {
	e = Normalize(e)
	if e.AllDay {
		first, last := DaySpan(e, loc)
		return first, last.AddDate(0, 0, 1)
	}
	if e.End.Equal(e.Start) {
		return e.Start, e.Start.Add(time.Nanosecond)
	}
	return e.Start, e.End
}

// Overlaps reports whether e intersects the half-open range [from, to).
// All-day dates are interpreted in from's location.
func Overlaps(e Event, from, to time.Time) bool {
	start, end := Interval(e, from.Location())
	return start.Before(to) && end.After(from)
}

// InRange returns the events overlapping [from, to), sorted.
func InRange(events []Event, from, to time.Time) []Event {
	var out []Event
	for _, e := range events {
		if Overlaps(e, from, to) {
			out = append(out, Normalize(e))
		}
	}
	Sort(out, from.Location())
	return out
}

// Upcoming returns at most n events that have not yet ended at now.
func Upcoming(events []Event, now time.Time, n int) []Event {
	loc := now.Location()
	var out []Event
	for _, e := range events {
		if _, end := Interval(e, loc); end.After(now) {
			out = append(out, Normalize(e))
		}
	}
	Sort(out, loc)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Sort orders events by start; on the same start all-day events come
// first, then by title.
func Sort(events []Event, loc *time.Location) {
	sort.SliceStable(events, func(i, j int) bool {
		return less(events[i], events[j], loc)
	})
}

func less(a, b Event, loc *time.Location) bool {
	as, _ := Interval(a, loc)
	bs, _ := Interval(b, loc)
	if !as.Equal(bs) {
		return as.Before(bs)
	}
	if a.AllDay != b.AllDay {
		return a.AllDay
	}
	return a.Title < b.Title
}

// TimeLabel formats the event's time for display in loc.
func (e Event) TimeLabel(loc *time.Location) string {
	if e.AllDay {
		return "All day"
	}
	start := e.Start.In(loc)
	end := Normalize(e).End.In(loc)
	if Date(start, loc).Equal(Date(end, loc)) {
		return start.Format("3:04 PM") + " – " + end.Format("3:04 PM")
	}
	return start.Format("Jan 2, 3:04 PM") + " – " + end.Format("Jan 2, 3:04 PM")
}

// DateLabel formats the event's date range for display in loc.
func (e Event) DateLabel(loc *time.Location) string {
	first, last := DaySpan(e, loc)
	if first.Equal(last) {
		return first.Format("Mon, Jan 2, 2006")
	}
	if first.Year() == last.Year() {
		return first.Format("Jan 2") + " – " + last.Format("Jan 2, 2006")
	}
	return first.Format("Jan 2, 2006") + " – " + last.Format("Jan 2, 2006")
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
