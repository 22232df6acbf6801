package analytics

import (
	"fmt"
	"time"
)

// Period is a stats window selected by name: today, week, month or year.
type Period struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// ParsePeriod maps a query value to a Period, defaulting to the last week.
func ParsePeriod(name string) Period {
	switch name {
	case "today":
		return Period{Name: name, Days: 1}
	case "month":
		return Period{Name: name, Days: 30}
	case "year":
		return Period{Name: name, Days: 365}
	default:
		return Period{Name: "week", Days: 7}
	}
}

// Hourly reports whether the series is bucketed by hour.
func (p Period) Hourly() bool { return p.Name == "today" }

// Monthly reports whether the series is bucketed by month.
func (p Period) Monthly() bool { return p.Name == "year" }

func (p Period) bucket() string {
	switch {
	case p.Hourly():
		return "%H:00"
	case p.Monthly():
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// Range returns the half-open UTC interval the period covers at now. The
// hourly window is the last 24 whole hours including the current one; the
// others run from midnight Days ago through the end of today.
func (p Period) Range(now time.Time) (from, to time.Time) {
	now = now.UTC()
	if p.Hourly() {
		from = now.Truncate(time.Hour).Add(-23 * time.Hour)
		return from, from.Add(24 * time.Hour)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -p.Days), today.AddDate(0, 0, 1)
}

// fillHours returns all 24 hourly points starting at from, zero-filling
// the hours with no views.
func fillHours(sparse []SeriesPoint, from time.Time) []SeriesPoint {
	byLabel := make(map[string]int, len(sparse))
	for _, pt := range sparse {
		byLabel[pt.Label] = pt.Views
	}
	out := make([]SeriesPoint, 24)
	for i := range out {
		label := fmt.Sprintf("%02d:00", from.Add(time.Duration(i)*time.Hour).UTC().Hour())
		out[i] = SeriesPoint{Label: label, Views: byLabel[label]}
	}
	return out
}
