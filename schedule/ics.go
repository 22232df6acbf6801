package schedule

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ICSOptions controls the calendar feed.
type ICSOptions struct {
	Name    string
	BaseURL string
	// Domain suffixes event UIDs, e.g. "example.org".
	Domain string
	Now    time.Time
}

// WriteICS writes events as an iCalendar feed. Timed events are emitted in
// UTC; all-day events use DATE values with an exclusive end.
func WriteICS(w io.Writer, events []Event, loc *time.Location, opts ICSOptions) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//chapel//schedule//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}
	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}
	domain := opts.Domain
	if domain == "" {
		domain = "chapel"
	}

	for _, e := range events {
		e = Normalize(e)
		ev := cal.AddEvent(e.ID + "@" + domain)
		ev.SetDtStampTime(stamp.UTC())
		if e.AllDay {
			first, last := DaySpan(e, time.UTC)
			ev.SetAllDayStartAt(first)
			ev.SetAllDayEndAt(last.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(e.Start.UTC())
			ev.SetEndAt(e.End.UTC())
		}
		ev.SetSummary(e.Title)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.URL != "" {
			ev.SetURL(e.URL)
		} else if opts.BaseURL != "" {
			ev.SetURL(opts.BaseURL)
		}
		if e.Category != "" {
			ev.AddProperty(ics.ComponentPropertyCategories, e.Category)
		}
	}
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("schedule: write ics: %w", err)
	}
	return nil
}
