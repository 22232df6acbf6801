package chapel

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
	"github.com/eringen/chapel/views"
)

const (
	homeNewsCount     = 3
	upcomingCount     = 5
	relatedCount      = 3
	calendarLanes     = 3
	calendarWeekStart = time.Sunday
)

func (a *App) handleHome(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	info := a.siteInfo()
	now := a.now().In(a.loc)

	page := views.HomePage{
		Layout: a.layout("home", views.PageMeta{
			URL:    "/",
			JSONLD: ChurchJsonLD(info, a.Config),
		}),
		Events:   schedule.Upcoming(snap.Events, now, upcomingCount),
		Services: info.ServicesByDay(),
		Loc:      a.loc,
	}
	if e, ok := content.Latest(snap.Entries[content.KindSermon], now); ok {
		page.Sermon = &e
	}
	if e, ok := content.Latest(snap.Entries[content.KindBulletin], now); ok {
		page.Bulletin = &e
	}
	news := snap.Entries[content.KindNews]
	page.News = news[:min(homeNewsCount, len(news))]

	return Render(c, a.Views.Home(page))
}

func filterFromQuery(c echo.Context) content.Filter {
	year, _ := strconv.Atoi(c.QueryParam("year"))
	return content.Filter{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Tag:      content.NormalizeTag(c.QueryParam("tag")),
		Year:     year,
		Preacher: strings.TrimSpace(c.QueryParam("preacher")),
		Series:   strings.TrimSpace(c.QueryParam("series")),
	}
}

// listHandler serves the index of one kind. With HX-Request and
// partial=list only the results fragment is rendered.
func (a *App) listHandler(kind content.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries, err := a.Cache.Entries(kind)
		if err != nil {
			return err
		}
		f := filterFromQuery(c)
		number, _ := strconv.Atoi(c.QueryParam("page"))

		heading := kind.Title()
		if f.Tag != "" {
			heading += ": " + views.TagTitle(f.Tag)
		}
		page := views.ListPage{
			Layout: a.layout(string(kind), views.PageMeta{
				Title: kind.Title(),
				URL:   kind.Path(),
			}),
			Kind:    kind,
			Heading: heading,
			Filter:  f,
			Page:    content.Paginate(f.Apply(entries), number, a.Config.PageSize),
			Tags:    content.Tags(entries),
			Years:   content.Years(entries),
		}
		if kind == content.KindSermon {
			page.Preachers = content.Preachers(entries)
			page.Series = content.SeriesList(entries)
		}

		if isPartial(c, "list") {
			return Render(c, a.Views.ListPartial(page))
		}
		return Render(c, a.Views.List(page))
	}
}

func (a *App) entryHandler(kind content.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		slug := c.Param("slug")
		e, err := a.Cache.Entry(kind, slug)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return a.renderNotFound(c)
			}
			return err
		}
		entries, err := a.Cache.Entries(kind)
		if err != nil {
			return err
		}
		older, newer := content.Neighbors(entries, slug)

		page := views.EntryPage{
			Layout: a.layout(string(kind), views.PageMeta{
				Title:       e.Title,
				Description: e.Description(),
				URL:         e.Link(),
				OGType:      "article",
				Image:       e.Cover,
				JSONLD:      ArticleJsonLD(e, a.siteInfo(), a.Config),
			}),
			Entry:   e,
			Body:    blocks.HTML(e.Blocks),
			Outline: blocks.Outline(e.Blocks),
			Related: content.Related(e, entries, relatedCount),
			Older:   older,
			Newer:   newer,
		}
		return Render(c, a.Views.Entry(page))
	}
}

// handleSchedule renders the month calendar, as a grid with spanning bars
// or (?view=list) as a day-by-day list. ?month=2006-01 picks the month.
func (a *App) handleSchedule(c echo.Context) error {
	events, err := a.Cache.Events()
	if err != nil {
		return err
	}
	now := a.now().In(a.loc)
	month := schedule.ParseMonth(c.QueryParam("month"), now)
	m := schedule.BuildMonth(month.Year(), month.Month(), now, calendarWeekStart, a.loc)
	from, to := m.Range()
	visible := schedule.InRange(events, from, to)

	view := "grid"
	if c.QueryParam("view") == "list" {
		view = "list"
	}
	first := m.First(a.loc)
	inMonth := schedule.InRange(events, first, schedule.NextMonth(first))

	page := views.SchedulePage{
		Layout: a.layout("schedule", views.PageMeta{
			Title:       "Schedule",
			Description: "Services, meetings and events for " + m.Title() + ".",
			URL:         "/schedule/",
			JSONLD:      EventsJsonLD(inMonth, a.siteInfo(), a.Config, a.loc),
		}),
		Month:    m,
		Weeks:    schedule.LayoutMonth(m, visible, calendarLanes),
		Days:     schedule.GroupByDay(inMonth, first, schedule.NextMonth(first), a.loc),
		Upcoming: schedule.Upcoming(events, now, upcomingCount),
		View:     view,
		Key:      schedule.MonthKey(month),
		Prev:     schedule.MonthKey(schedule.PrevMonth(month)),
		Next:     schedule.MonthKey(schedule.NextMonth(month)),
		Loc:      a.loc,
	}

	if isPartial(c, "calendar") {
		return Render(c, a.Views.SchedulePartial(page))
	}
	return Render(c, a.Views.Schedule(page))
}

// handleICS serves every event as an iCalendar subscription feed.
func (a *App) handleICS(c echo.Context) error {
	events, err := a.Cache.Events()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = schedule.WriteICS(&buf, events, a.loc, schedule.ICSOptions{
		Name:    a.siteInfo().Name,
		BaseURL: a.Config.URL,
		Domain:  siteHost(a.Config.URL),
		Now:     a.now(),
	})
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", `inline; filename="schedule.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func siteHost(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

func (a *App) handleStaff(c echo.Context) error {
	staff, err := a.Cache.Staff()
	if err != nil {
		return err
	}
	return Render(c, a.Views.Staff(views.StaffPage{
		Layout: a.layout("staff", views.PageMeta{Title: "Staff", URL: "/staff/"}),
		Groups: content.GroupStaff(staff),
	}))
}

func (a *App) handleAbout(c echo.Context) error {
	info := a.siteInfo()
	return Render(c, a.Views.About(views.AboutPage{
		Layout: a.layout("about", views.PageMeta{
			Title:  "About",
			URL:    "/about/",
			JSONLD: ChurchJsonLD(info, a.Config),
		}),
		Services: info.ServicesByDay(),
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, snap)
}

func (a *App) handleFeed(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return a.renderRSS(c, snap)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

// handleRobots serves STATIC_DIR/robots.txt, or a default that keeps
// crawlers out of the admin and points at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	body := "User-agent: *\nDisallow: /admin/\n\nSitemap: " + FileURL(a.Config.URL, "sitemap.xml") + "\n"
	return c.String(http.StatusOK, body)
}

func (a *App) errorPage(title string) views.ErrorPage {
	return views.ErrorPage{Layout: a.layout("", views.PageMeta{Title: title})}
}

func (a *App) renderNotFound(c echo.Context) error {
	return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.errorPage("Page not found")))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = a.renderNotFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError(a.errorPage("Something went wrong")))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
