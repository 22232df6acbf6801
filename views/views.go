// Package views holds the default page components. Pages are html/template
// files embedded in the binary and exposed as templ components so an App can
// swap any of them for its own.
package views

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eringen/chapel/schedule"
)

//go:embed templates/*.html
var files embed.FS

// shared is parsed into every page set.
var shared = []string{"templates/layout.html", "templates/partials.html"}

var pageFiles = []string{
	"home", "list", "entry", "schedule", "staff", "about",
	"admin_login", "admin_dashboard", "not_found", "server_error",
}

var funcs = template.FuncMap{
	"add":      func(a, b int) int { return a + b },
	"tagTitle": TagTitle,
	"at": func(e schedule.Event, loc *time.Location) EventAt {
		return EventAt{Event: e, Loc: loc}
	},
}

var pages = mustParse()

func mustParse() map[string]*template.Template {
	base := template.Must(template.New("").Funcs(funcs).ParseFS(files, shared...))
	out := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t := template.Must(base.Clone())
		out[name] = template.Must(t.ParseFS(files, "templates/"+name+".html"))
	}
	return out
}

// EventAt pairs an event with the zone its labels are shown in.
type EventAt struct {
	schedule.Event
	Loc *time.Location
}

// When is the date and time label of the event.
func (e EventAt) When() string {
	return e.DateLabel(e.Loc) + " · " + e.TimeLabel(e.Loc)
}

// TagTitle turns a tag or category slug into display text ("good-friday"
// becomes "Good Friday").
func TagTitle(tag string) string {
	tag = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(tag))
	return cases.Title(language.English).String(tag)
}

// render executes one named template of a page set. Output is buffered so a
// failing template never leaves a half-written response.
func render(page, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[page]
		if !ok {
			return fmt.Errorf("views: unknown page %q", page)
		}
		var buf bytes.Buffer
		if err := t.ExecuteTemplate(&buf, name, data); err != nil {
			return fmt.Errorf("views: %s: %w", page, err)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

func Home(p HomePage) templ.Component { return render("home", "layout", p) }

func List(p ListPage) templ.Component { return render("list", "layout", p) }

// ListPartial is the results fragment swapped in by the filter form.
func ListPartial(p ListPage) templ.Component { return render("list", "list-results", p) }

func Entry(p EntryPage) templ.Component { return render("entry", "layout", p) }

func Schedule(p SchedulePage) templ.Component { return render("schedule", "layout", p) }

// SchedulePartial is the month navigation plus grid or list.
func SchedulePartial(p SchedulePage) templ.Component {
	return render("schedule", "calendar", p)
}

func Staff(p StaffPage) templ.Component { return render("staff", "layout", p) }

func About(p AboutPage) templ.Component { return render("about", "layout", p) }

func AdminLogin(p AdminLoginPage) templ.Component { return render("admin_login", "layout", p) }

func AdminDashboard(p AdminDashboardPage) templ.Component {
	return render("admin_dashboard", "layout", p)
}

func NotFound(p ErrorPage) templ.Component { return render("not_found", "layout", p) }

func ServerError(p ErrorPage) templ.Component { return render("server_error", "layout", p) }
