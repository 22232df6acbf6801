package schedule

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, kst)
}

func localDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, kst)
}

func allDay(id string, from, to time.Time) Event {
	return Event{ID: id, Title: id, Start: from, End: to, AllDay: true}
}

func timed(id string, from, to time.Time) Event {
	return Event{ID: id, Title: id, Start: from, End: to}
}

func TestNormalize(t *testing.T) {
	start := at(2024, 4, 7, 11, 0)

	e := Normalize(timed("t", start, time.Time{}))
	assert.Equal(t, start.Add(time.Hour), e.End)

	e = Normalize(timed("t", start, start.Add(-time.Minute)))
	assert.Equal(t, start.Add(time.Hour), e.End)

	e = Normalize(allDay("a", date(2024, 4, 7), time.Time{}))
	assert.Equal(t, date(2024, 4, 7), e.End)

	e = Normalize(timed("t", start, start.Add(2*time.Hour)))
	assert.Equal(t, start.Add(2*time.Hour), e.End)
}

func TestDaySpan(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		wantFirst time.Time
		wantLast  time.Time
	}{
		{"all-day inclusive end", allDay("a", date(2024, 3, 29), date(2024, 3, 31)), localDate(2024, 3, 29), localDate(2024, 3, 31)},
		{"all-day single", allDay("a", date(2024, 3, 29), time.Time{}), localDate(2024, 3, 29), localDate(2024, 3, 29)},
		{"timed same day", timed("t", at(2024, 4, 7, 11, 0), at(2024, 4, 7, 12, 30)), localDate(2024, 4, 7), localDate(2024, 4, 7)},
		{"timed ends at midnight", timed("t", at(2024, 4, 7, 22, 0), at(2024, 4, 8, 0, 0)), localDate(2024, 4, 7), localDate(2024, 4, 7)},
		{"timed overnight", timed("t", at(2024, 4, 7, 22, 0), at(2024, 4, 8, 1, 0)), localDate(2024, 4, 7), localDate(2024, 4, 8)},
		{"retreat", timed("t", at(2024, 4, 5, 18, 0), at(2024, 4, 7, 13, 0)), localDate(2024, 4, 5), localDate(2024, 4, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := DaySpan(tt.event, kst)
			assert.True(t, tt.wantFirst.Equal(first), "first = %v", first)
			assert.True(t, tt.wantLast.Equal(last), "last = %v", last)
		})
	}
}

func TestDaySpanConvertsTimedEventsToLocation(t *testing.T) {
	// 23:30 UTC is 08:30 the next morning in Seoul.
	e := timed("t", time.Date(2024, 4, 6, 23, 30, 0, 0, time.UTC), time.Date(2024, 4, 7, 0, 30, 0, 0, time.UTC))
	first, last := DaySpan(e, kst)
	assert.True(t, localDate(2024, 4, 7).Equal(first))
	assert.True(t, localDate(2024, 4, 7).Equal(last))
}

func TestOverlapsAndInRange(t *testing.T) {
	from := localDate(2024, 4, 7)
	to := localDate(2024, 4, 14)
	events := []Event{
		timed("late", at(2024, 4, 13, 19, 0), at(2024, 4, 13, 21, 0)),
		allDay("before", date(2024, 4, 1), date(2024, 4, 6)),
		allDay("spanning", date(2024, 4, 5), date(2024, 4, 8)),
		timed("after", at(2024, 4, 14, 0, 0), at(2024, 4, 14, 1, 0)),
		allDay("sunday", date(2024, 4, 7), date(2024, 4, 7)),
		timed("sunday-service", at(2024, 4, 7, 0, 0), at(2024, 4, 7, 1, 0)),
	}
	assert.False(t, Overlaps(events[1], from, to))
	assert.True(t, Overlaps(events[2], from, to))
	assert.False(t, Overlaps(events[3], from, to))

	got := InRange(events, from, to)
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"spanning", "sunday", "sunday-service", "late"}, ids)
}

func TestUpcoming(t *testing.T) {
	now := at(2024, 4, 7, 12, 0)
	events := []Event{
		timed("past", at(2024, 4, 7, 9, 0), at(2024, 4, 7, 10, 0)),
		timed("running", at(2024, 4, 7, 11, 0), at(2024, 4, 7, 13, 0)),
		allDay("today", date(2024, 4, 7), date(2024, 4, 7)),
		timed("next", at(2024, 4, 10, 19, 0), at(2024, 4, 10, 20, 0)),
		timed("later", at(2024, 5, 1, 19, 0), time.Time{}),
	}
	got := Upcoming(events, now, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "today", got[0].ID)
	assert.Equal(t, "running", got[1].ID)
	assert.Equal(t, "next", got[2].ID)

	assert.Len(t, Upcoming(events, now, 0), 4)
}

func TestBuildMonth(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		weekStart time.Weekday
		weeks     int
		firstCell time.Time
	}{
		{"april 2024 sunday", 2024, time.April, time.Sunday, 5, localDate(2024, 3, 31)},
		{"april 2024 monday", 2024, time.April, time.Monday, 5, localDate(2024, 4, 1)},
		{"february 2015", 2015, time.February, time.Sunday, 4, localDate(2015, 2, 1)},
		{"august 2026", 2026, time.August, time.Sunday, 6, localDate(2026, 7, 26)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildMonth(tt.year, tt.month, at(tt.year, tt.month, 15, 9, 0), tt.weekStart, kst)
			require.Len(t, m.Weeks, tt.weeks)
			assert.True(t, tt.firstCell.Equal(m.Weeks[0][0].Date), "first cell %v", m.Weeks[0][0].Date)
			assert.Equal(t, tt.weekStart, m.Weeks[0][0].Date.Weekday())

			inMonth, today := 0, 0
			for _, w := range m.Weeks {
				for _, d := range w {
					if d.InMonth {
						inMonth++
					}
					if d.Today {
						today++
						assert.Equal(t, 15, d.Date.Day())
					}
				}
			}
			assert.Equal(t, m.First(kst).AddDate(0, 1, -1).Day(), inMonth)
			assert.Equal(t, 1, today)
		})
	}
}

func TestMonthRangeAndTitle(t *testing.T) {
	m := BuildMonth(2024, time.April, time.Time{}, time.Sunday, kst)
	from, to := m.Range()
	assert.True(t, localDate(2024, 3, 31).Equal(from))
	assert.True(t, localDate(2024, 5, 5).Equal(to))
	assert.Equal(t, "April 2024", m.Title())
}

func week(start time.Time) [7]Day {
	var w [7]Day
	for i := range w {
		w[i] = Day{Date: start.AddDate(0, 0, i)}
	}
	return w
}

func TestLayoutWeek(t *testing.T) {
	w := week(localDate(2024, 4, 7))
	events := []Event{
		timed("d", at(2024, 4, 10, 19, 0), at(2024, 4, 10, 21, 0)),
		timed("c", at(2024, 4, 8, 10, 0), at(2024, 4, 8, 11, 0)),
		allDay("b", date(2024, 4, 8), date(2024, 4, 12)),
		allDay("a", date(2024, 4, 5), date(2024, 4, 9)),
		allDay("e", date(2024, 4, 13), date(2024, 4, 15)),
		allDay("outside", date(2024, 4, 14), date(2024, 4, 20)),
	}

	layout := LayoutWeek(w, events, 0)
	require.Len(t, layout.Segments, 5)
	byID := make(map[string]Segment)
	for _, s := range layout.Segments {
		byID[s.Event.ID] = s
	}

	a := byID["a"]
	assert.Equal(t, 0, a.Col)
	assert.Equal(t, 3, a.Span)
	assert.Equal(t, 0, a.Lane)
	assert.True(t, a.ContinuesBefore)
	assert.False(t, a.ContinuesAfter)

	b := byID["b"]
	assert.Equal(t, 1, b.Col)
	assert.Equal(t, 5, b.Span)
	assert.Equal(t, 1, b.Lane)

	assert.Equal(t, 2, byID["c"].Lane)
	assert.Equal(t, 0, byID["d"].Lane)

	e := byID["e"]
	assert.Equal(t, 6, e.Col)
	assert.Equal(t, 1, e.Span)
	assert.Equal(t, 0, e.Lane)
	assert.True(t, e.ContinuesAfter)

	assert.Equal(t, 3, layout.Lanes)
	assert.Equal(t, [7]int{}, layout.Hidden)
}

func TestLayoutWeekHidesOverflow(t *testing.T) {
	w := week(localDate(2024, 4, 7))
	events := []Event{
		allDay("a", date(2024, 4, 5), date(2024, 4, 9)),
		allDay("b", date(2024, 4, 8), date(2024, 4, 12)),
		timed("c", at(2024, 4, 8, 10, 0), at(2024, 4, 8, 11, 0)),
		timed("d", at(2024, 4, 8, 12, 0), at(2024, 4, 8, 13, 0)),
	}
	layout := LayoutWeek(w, events, 2)
	assert.Len(t, layout.Segments, 2)
	assert.Equal(t, 2, layout.Lanes)
	assert.Equal(t, [7]int{0, 2, 0, 0, 0, 0, 0}, layout.Hidden)

	lane1 := layout.SegmentsInLane(1)
	require.Len(t, lane1, 1)
	assert.Equal(t, "b", lane1[0].Event.ID)
	assert.Equal(t, []int{0, 1}, layout.LaneIndexes())
}

func TestLayoutWeekLongerSpanWinsTopLane(t *testing.T) {
	w := week(localDate(2024, 4, 7))
	events := []Event{
		timed("short", at(2024, 4, 9, 9, 0), at(2024, 4, 9, 10, 0)),
		allDay("long", date(2024, 4, 9), date(2024, 4, 11)),
	}
	layout := LayoutWeek(w, events, 3)
	require.Len(t, layout.Segments, 2)
	assert.Equal(t, "long", layout.Segments[0].Event.ID)
	assert.Equal(t, 0, layout.Segments[0].Lane)
	assert.Equal(t, 1, layout.Segments[1].Lane)
}

func TestLayoutMonth(t *testing.T) {
	m := BuildMonth(2024, time.April, time.Time{}, time.Sunday, kst)
	events := []Event{allDay("camp", date(2024, 4, 12), date(2024, 4, 16))}
	weeks := LayoutMonth(m, events, 3)
	require.Len(t, weeks, 5)
	assert.Empty(t, weeks[0].Segments)
	require.Len(t, weeks[1].Segments, 1)
	require.Len(t, weeks[2].Segments, 1)
	assert.Equal(t, 5, weeks[1].Segments[0].Col)
	assert.Equal(t, 2, weeks[1].Segments[0].Span)
	assert.True(t, weeks[1].Segments[0].ContinuesAfter)
	assert.Equal(t, 0, weeks[2].Segments[0].Col)
	assert.Equal(t, 3, weeks[2].Segments[0].Span)
	assert.True(t, weeks[2].Segments[0].ContinuesBefore)
}

func TestGroupByDay(t *testing.T) {
	from := localDate(2024, 4, 7)
	to := localDate(2024, 4, 10)
	events := []Event{
		allDay("retreat", date(2024, 4, 5), date(2024, 4, 8)),
		timed("prayer", at(2024, 4, 9, 6, 0), at(2024, 4, 9, 7, 0)),
		timed("service", at(2024, 4, 7, 11, 0), at(2024, 4, 7, 12, 0)),
		timed("next-week", at(2024, 4, 14, 11, 0), at(2024, 4, 14, 12, 0)),
	}
	groups := GroupByDay(events, from, to, kst)
	require.Len(t, groups, 3)

	assert.True(t, localDate(2024, 4, 7).Equal(groups[0].Date))
	require.Len(t, groups[0].Events, 2)
	assert.Equal(t, "retreat", groups[0].Events[0].ID)
	assert.Equal(t, "service", groups[0].Events[1].ID)

	assert.True(t, localDate(2024, 4, 8).Equal(groups[1].Date))
	assert.Equal(t, "retreat", groups[1].Events[0].ID)

	assert.True(t, localDate(2024, 4, 9).Equal(groups[2].Date))
	assert.Equal(t, "prayer", groups[2].Events[0].ID)
}

func TestParseMonth(t *testing.T) {
	now := at(2024, 4, 17, 9, 0)
	assert.True(t, localDate(2023, 12, 1).Equal(ParseMonth("2023-12", now)))
	assert.True(t, localDate(2024, 4, 1).Equal(ParseMonth("", now)))
	assert.True(t, localDate(2024, 4, 1).Equal(ParseMonth("garbage", now)))
	assert.True(t, localDate(2024, 4, 1).Equal(ParseMonth("2024-13", now)))

	assert.True(t, localDate(2023, 12, 1).Equal(PrevMonth(localDate(2024, 1, 1))))
	assert.True(t, localDate(2025, 1, 1).Equal(NextMonth(localDate(2024, 12, 31))))
	assert.Equal(t, "2024-04", MonthKey(now))
}

func TestEventLabels(t *testing.T) {
	e := timed("t", at(2024, 4, 7, 11, 0), at(2024, 4, 7, 12, 30))
	assert.Equal(t, "11:00 AM – 12:30 PM", e.TimeLabel(kst))
	assert.Equal(t, "Sun, Apr 7, 2024", e.DateLabel(kst))

	a := allDay("a", date(2024, 4, 5), date(2024, 4, 7))
	assert.Equal(t, "All day", a.TimeLabel(kst))
	assert.Equal(t, "Apr 5 – Apr 7, 2024", a.DateLabel(kst))
}

func TestWriteICS(t *testing.T) {
	events := []Event{
		{ID: "retreat", Title: "Youth Retreat", Start: date(2024, 4, 5), End: date(2024, 4, 7), AllDay: true, Location: "Camp Cedar", Category: "Youth"},
		{ID: "service", Title: "Easter Service", Start: at(2024, 3, 31, 11, 0), End: at(2024, 3, 31, 12, 0), Description: "Worship"},
	}
	var buf bytes.Buffer
	err := WriteICS(&buf, events, kst, ICSOptions{Name: "Grace Church", Domain: "grace.example", Now: at(2024, 3, 1, 0, 0)})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240405")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240408")
	assert.Contains(t, out, "DTSTART:20240331T020000Z")
	assert.Contains(t, out, "UID:retreat@grace.example")
	assert.Contains(t, out, "X-WR-CALNAME:Grace Church")

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
	summary := cal.Events()[1].GetProperty(ics.ComponentPropertySummary)
	require.NotNil(t, summary)
	assert.Equal(t, "Easter Service", summary.Value)
}
