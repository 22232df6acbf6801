package chapel

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/chapel/views"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// isPartial reports whether an htmx request asked for the named fragment.
func isPartial(c echo.Context, name string) bool {
	return c.Request().Header.Get("HX-Request") == "true" && c.QueryParam("partial") == name
}

// layout fills the data shared by every page. A relative meta URL is made
// canonical against the site URL.
func (a *App) layout(section string, meta views.PageMeta) views.Layout {
	info := a.siteInfo()
	if meta.Title == "" {
		meta.Title = info.Name
	}
	if meta.Description == "" {
		meta.Description = a.Config.Description
	}
	if meta.Description == "" {
		meta.Description = info.Tagline
	}
	if meta.URL != "" {
		meta.URL = AbsoluteURL(a.Config.URL, meta.URL)
	}
	if meta.Image != "" {
		meta.Image = AbsoluteURL(a.Config.URL, meta.Image)
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	return views.Layout{
		Site:      info,
		SiteURL:   a.Config.URL,
		Meta:      meta,
		Section:   section,
		Analytics: a.Config.AnalyticsEnabled && a.analyticsStore != nil,
		Year:      a.now().In(a.loc).Year(),
	}
}
