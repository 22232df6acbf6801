package schedule

import (
	"sort"
	"time"
)

// Segment is the part of an event drawn within one week row.
type Segment struct {
	Event Event
	// Col is the first column (0-6) and Span the number of columns covered.
	Col  int
	Span int
	// Lane is the vertical slot within the week, 0 at the top.
	Lane            int
	ContinuesBefore bool
	ContinuesAfter  bool
}

// WeekLayout is the arrangement of event bars over one week of the grid.
type WeekLayout struct {
	Week     [7]Day
	Segments []Segment
	// Lanes is the number of lanes holding at least one visible segment.
	Lanes int
	// Hidden counts, per column, the segments that did not fit in maxLanes.
	Hidden [7]int
}

// SegmentsInLane returns the visible segments of lane l ordered by column.
func (w WeekLayout) SegmentsInLane(l int) []Segment {
	var out []Segment
	for _, s := range w.Segments {
		if s.Lane == l {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Col < out[j].Col })
	return out
}

// LaneIndexes returns 0..Lanes-1 for template ranging.
func (w WeekLayout) LaneIndexes() []int {
	idx := make([]int, w.Lanes)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// LayoutWeek places events on a week row. Each event is clipped to the week
// and assigned the lowest lane that is free in every column it spans.
// Events are placed in order of start column, then longer span, then start
// time, then title, which keeps long bars on top. Segments that would land
// at or beyond maxLanes are dropped and counted in Hidden; maxLanes <= 0
// means unlimited.
func LayoutWeek(week [7]Day, events []Event, maxLanes int) WeekLayout {
	layout := WeekLayout{Week: week}
	loc := week[0].Date.Location()
	weekFirst := week[0].Date
	weekLast := week[6].Date

	var segs []Segment
	for _, e := range events {
		e = Normalize(e)
		first, last := DaySpan(e, loc)
		if last.Before(weekFirst) || first.After(weekLast) {
			continue
		}
		s := Segment{Event: e}
		if first.Before(weekFirst) {
			s.ContinuesBefore = true
			first = weekFirst
		}
		if last.After(weekLast) {
			s.ContinuesAfter = true
			last = weekLast
		}
		s.Col = daysBetween(weekFirst, first)
		s.Span = daysBetween(first, last) + 1
		segs = append(segs, s)
	}

	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		if a.Span != b.Span {
			return a.Span > b.Span
		}
		return less(a.Event, b.Event, loc)
	})

	var occupied [][7]bool
	for _, s := range segs {
		lane := 0
		for ; lane < len(occupied); lane++ {
			if free(occupied[lane], s.Col, s.Span) {
				break
			}
		}
		if maxLanes > 0 && lane >= maxLanes {
			for c := s.Col; c < s.Col+s.Span; c++ {
				layout.Hidden[c]++
			}
			continue
		}
		if lane == len(occupied) {
			occupied = append(occupied, [7]bool{})
		}
		for c := s.Col; c < s.Col+s.Span; c++ {
			occupied[lane][c] = true
		}
		s.Lane = lane
		layout.Segments = append(layout.Segments, s)
		if lane+1 > layout.Lanes {
			layout.Lanes = lane + 1
		}
	}
	return layout
}

func free(row [7]bool, col, span int) bool {
	for c := col; c < col+span; c++ {
		if row[c] {
			return false
		}
	}
	return true
}

// LayoutMonth lays out every week of m.
func LayoutMonth(m Month, events []Event, maxLanes int) []WeekLayout {
	out := make([]WeekLayout, 0, len(m.Weeks))
	for _, w := range m.Weeks {
		out = append(out, LayoutWeek(w, events, maxLanes))
	}
	return out
}

// DayGroup is the list-view bucket of events on one day.
type DayGroup struct {
	Date   time.Time
	Events []Event
}

// GroupByDay buckets events under every day of [from, to) they cover, in
// date order. Days without events are omitted.
func GroupByDay(events []Event, from, to time.Time, loc *time.Location) []DayGroup {
	start := Date(from, loc)
	byDay := make(map[time.Time][]Event)
	for _, e := range events {
		e = Normalize(e)
		first, last := DaySpan(e, loc)
		if first.Before(start) {
			first = start
		}
		for d := first; !d.After(last) && d.Before(to); d = d.AddDate(0, 0, 1) {
			byDay[d] = append(byDay[d], e)
		}
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	groups := make([]DayGroup, 0, len(days))
	for _, d := range days {
		evs := byDay[d]
		Sort(evs, loc)
		groups = append(groups, DayGroup{Date: d, Events: evs})
	}
	return groups
}
