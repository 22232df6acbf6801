package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time
	InMonth bool
	Today   bool
}

// Month is a month grid made of whole weeks.
type Month struct {
	Year  int
	Month time.Month
	Weeks [][7]Day
}

// First returns midnight of the first day of the month.
func (m Month) First(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Range returns the half-open range covered by the grid, including the
// leading and trailing days of adjacent months.
func (m Month) Range() (from, to time.Time) {
	if len(m.Weeks) == 0 {
		return time.Time{}, time.Time{}
	}
	from = m.Weeks[0][0].Date
	to = m.Weeks[len(m.Weeks)-1][6].Date.AddDate(0, 0, 1)
	return from, to
}

// Title is the display heading, e.g. "April 2024".
func (m Month) Title() string {
	return m.Month.String() + " " + strconv.Itoa(m.Year)
}

// BuildMonth lays out the weeks covering month, starting each week on
// weekStart. The result has between four and six weeks.
func BuildMonth(year int, month time.Month, today time.Time, weekStart time.Weekday, loc *time.Location) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	cur := first.AddDate(0, 0, -offset)
	todayDate := Date(today, loc)

	m := Month{Year: first.Year(), Month: first.Month()}
	for {
		var week [7]Day
		for i := range week {
			week[i] = Day{
				Date:    cur,
				InMonth: cur.Month() == first.Month(),
				Today:   cur.Equal(todayDate),
			}
			cur = cur.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, week)
		if cur.Month() != first.Month() || cur.Year() != first.Year() {
			break
		}
	}
	return m
}

// ParseMonth parses "2006-01" in now's location, falling back to the month
// containing now when s is empty or malformed.
func ParseMonth(s string, now time.Time) time.Time {
	loc := now.Location()
	if t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc); err == nil {
		return t
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
}

// PrevMonth returns the first day of the month before the one containing t.
func PrevMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()-1, 1, 0, 0, 0, 0, t.Location())
}

// NextMonth returns the first day of the month after the one containing t.
func NextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

// MonthKey formats t as "2006-01" for query parameters.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
