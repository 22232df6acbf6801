package views

import (
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
	"github.com/eringen/chapel/siteinfo"
)

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// Layout is embedded in every page. Section marks the active nav link.
type Layout struct {
	Site      siteinfo.Info
	SiteURL   string
	Meta      PageMeta
	Section   string
	Analytics bool
	Year      int
}

// FullTitle is the <title> text.
func (l Layout) FullTitle() string {
	if l.Meta.Title == "" || l.Meta.Title == l.Site.Name {
		return l.Site.Name
	}
	return l.Meta.Title + " | " + l.Site.Name
}

// JSONLD marks the precomputed JSON-LD as safe for a script element.
func (l Layout) JSONLD() template.JS {
	return template.JS(l.Meta.JSONLD)
}

// HomePage is the landing page.
type HomePage struct {
	Layout
	Sermon   *content.Entry
	Bulletin *content.Entry
	News     []content.Entry
	Events   []schedule.Event
	Services []siteinfo.ServiceDay
	Loc      *time.Location
}

// ListPage is a filtered, paginated index of sermons, bulletins or news.
type ListPage struct {
	Layout
	Kind      content.Kind
	Heading   string
	Filter    content.Filter
	Page      content.Page[content.Entry]
	Tags      []string
	Years     []int
	Preachers []string
	Series    []string
}

// PageURL links to page n keeping the active filters.
func (p ListPage) PageURL(n int) string {
	q := url.Values{}
	for k, v := range p.Filter.Values() {
		q.Set(k, v)
	}
	if n > 1 {
		q.Set("page", strconv.Itoa(n))
	}
	if len(q) == 0 {
		return p.Kind.Path()
	}
	return p.Kind.Path() + "?" + q.Encode()
}

// TagURL links to the list filtered by tag alone.
func (p ListPage) TagURL(tag string) string {
	return p.Kind.Path() + "?tag=" + url.QueryEscape(tag)
}

// Filtered reports whether any filter is active.
func (p ListPage) Filtered() bool {
	return !p.Filter.IsZero()
}

// EntryPage shows one sermon, bulletin or news post.
type EntryPage struct {
	Layout
	Entry   content.Entry
	Body    template.HTML
	Outline []blocks.Heading
	Related []content.Entry
	Older   *content.Entry
	Newer   *content.Entry
}

// VideoEmbed is the iframe source for the entry's video, if it has one
// that can be embedded.
func (p EntryPage) VideoEmbed() string {
	src, ok := blocks.EmbedURL(p.Entry.VideoURL)
	if !ok {
		return ""
	}
	return src
}

// SchedulePage is the calendar. View is "grid" or "list".
type SchedulePage struct {
	Layout
	Month    schedule.Month
	Weeks    []schedule.WeekLayout
	Days     []schedule.DayGroup
	Upcoming []schedule.Event
	View     string
	Key      string // month shown, "2006-01"
	Prev     string
	Next     string
	Loc      *time.Location
}

// MonthURL links to another month in the current view.
func (p SchedulePage) MonthURL(key string) string {
	u := "/schedule/?month=" + url.QueryEscape(key)
	if p.View == "list" {
		u += "&view=list"
	}
	return u
}

// ListURL links to an event in the list view of the current month.
func (p SchedulePage) ListURL(eventID string) string {
	return "/schedule/?month=" + url.QueryEscape(p.Key) + "&view=list#event-" + eventID
}

// StaffPage is the staff directory.
type StaffPage struct {
	Layout
	Groups []content.StaffGroup
}

// AboutPage shows the site file's about, locations and giving sections.
type AboutPage struct {
	Layout
	Services []siteinfo.ServiceDay
}

// AdminLoginPage is the login form.
type AdminLoginPage struct {
	Layout
	ShowError bool
	CSRF      string
}

// DatasetCount is the number of mirrored records of one dataset.
type DatasetCount struct {
	Name  string
	Count int
}

// AdminDashboardPage lists mirrored content and recent sync runs.
type AdminDashboardPage struct {
	Layout
	CSRF    string
	Message string
	Counts  []DatasetCount
	Runs    []content.SyncRun
	Syncing bool
}

// ErrorPage is used for 404 and 500 responses.
type ErrorPage struct {
	Layout
}
