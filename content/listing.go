package content

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Filter narrows an entry list. The zero value matches everything.
type Filter struct {
	Query    string
	Tag      string
	Year     int
	Preacher string
	Series   string
}

// IsZero reports whether the filter has no criteria.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether e satisfies every criterion of f.
func (f Filter) Match(e Entry) bool {
	if f.Year != 0 && e.Date.Year() != f.Year {
		return false
	}
	if f.Tag != "" && !hasTag(e.Tags, f.Tag) {
		return false
	}
	if f.Preacher != "" && !strings.EqualFold(strings.TrimSpace(e.Preacher), strings.TrimSpace(f.Preacher)) {
		return false
	}
	if f.Series != "" && !strings.EqualFold(strings.TrimSpace(e.Series), strings.TrimSpace(f.Series)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(strings.Join([]string{e.Title, e.Summary, e.Preacher, e.Scripture, e.Series}, "\n"))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// Apply returns the entries matching f, preserving order.
func (f Filter) Apply(entries []Entry) []Entry {
	if f.IsZero() {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Values encodes the filter as URL query parameters, omitting empty fields.
func (f Filter) Values() map[string]string {
	v := make(map[string]string)
	if f.Query != "" {
		v["q"] = f.Query
	}
	if f.Tag != "" {
		v["tag"] = f.Tag
	}
	if f.Year != 0 {
		v["year"] = strconv.Itoa(f.Year)
	}
	if f.Preacher != "" {
		v["preacher"] = f.Preacher
	}
	if f.Series != "" {
		v["series"] = f.Series
	}
	return v
}

// NormalizeTag lowercases and trims a tag for comparison.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func hasTag(tags []string, want string) bool {
	want = NormalizeTag(want)
	for _, t := range tags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}

// SortByDate orders entries newest first; ties break on title.
func SortByDate(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].Title < entries[j].Title
	})
}

// Tags returns the sorted, de-duplicated normalized tags of entries.
func Tags(entries []Entry) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		for _, t := range e.Tags {
			if n := NormalizeTag(t); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// Years returns the distinct years of entries, newest first.
func Years(entries []Entry) []int {
	set := make(map[int]struct{})
	for _, e := range entries {
		if !e.Date.IsZero() {
			set[e.Date.Year()] = struct{}{}
		}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// Preachers returns the distinct preacher names, sorted.
func Preachers(entries []Entry) []string {
	return distinct(entries, func(e Entry) string { return e.Preacher })
}

// SeriesList returns the distinct sermon series names, sorted.
func SeriesList(entries []Entry) []string {
	return distinct(entries, func(e Entry) string { return e.Series })
}

func distinct(entries []Entry, field func(Entry) string) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		if v := strings.TrimSpace(field(e)); v != "" {
			set[v] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Related returns up to n entries of the same kind sharing a tag (or, for
// sermons, a series) with current, excluding current itself.
func Related(current Entry, entries []Entry, n int) []Entry {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		if tag := NormalizeTag(t); tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []Entry
	for _, e := range entries {
		if len(related) >= n {
			break
		}
		if e.Slug == current.Slug || e.Kind != current.Kind {
			continue
		}
		if current.Series != "" && strings.EqualFold(e.Series, current.Series) {
			related = append(related, e)
			continue
		}
		for _, t := range e.Tags {
			if _, ok := tagSet[NormalizeTag(t)]; ok {
				related = append(related, e)
				break
			}
		}
	}
	return related
}

// Neighbors returns the entries published immediately before (older) and
// after (newer) the entry with slug, given entries sorted newest first.
func Neighbors(entries []Entry, slug string) (older, newer *Entry) {
	for i := range entries {
		if entries[i].Slug != slug {
			continue
		}
		if i+1 < len(entries) {
			older = &entries[i+1]
		}
		if i > 0 {
			newer = &entries[i-1]
		}
		return older, newer
	}
	return nil, nil
}

// Latest returns the newest published entry dated on or before now.
func Latest(entries []Entry, now time.Time) (Entry, bool) {
	for _, e := range entries {
		if !e.Date.After(now) {
			return e, true
		}
	}
	return Entry{}, false
}

// StaffGroup is one department of the staff directory.
type StaffGroup struct {
	Department string
	Members    []Staff
}

// GroupStaff orders staff by Order then name and groups them by department.
// Departments appear in the order of their first member.
func GroupStaff(staff []Staff) []StaffGroup {
	sorted := make([]Staff, len(staff))
	copy(sorted, staff)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].Name < sorted[j].Name
	})
	var groups []StaffGroup
	index := make(map[string]int)
	for _, s := range sorted {
		dept := strings.TrimSpace(s.Department)
		if dept == "" {
			dept = "Staff"
		}
		i, ok := index[dept]
		if !ok {
			i = len(groups)
			index[dept] = i
			groups = append(groups, StaffGroup{Department: dept})
		}
		groups[i].Members = append(groups[i].Members, s)
	}
	return groups
}
