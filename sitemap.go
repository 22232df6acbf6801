package chapel

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/chapel/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func lastMod(e content.Entry) string {
	if !e.UpdatedAt.IsZero() {
		return e.UpdatedAt.UTC().Format("2006-01-02")
	}
	return e.ISODate()
}

func (a *App) renderSitemap(c echo.Context, snap *Snapshot) error {
	base := a.Config.URL
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	for _, kind := range content.Kinds {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, kind.Path())})
	}
	for _, p := range []string{"schedule", "staff", "about"} {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, p)})
	}
	for _, kind := range content.Kinds {
		for _, e := range snap.Entries[kind] {
			urls = append(urls, sitemapURL{
				Loc:     BuildURL(base, e.Link()),
				LastMod: lastMod(e),
			})
		}
	}

	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
