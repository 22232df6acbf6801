package chapel

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/chapel/content"
)

const feedSize = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Self          rssLink   `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type rssLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
}

// feedEntries merges news and sermons, newest first.
func feedEntries(snap *Snapshot) []content.Entry {
	var all []content.Entry
	all = append(all, snap.Entries[content.KindNews]...)
	all = append(all, snap.Entries[content.KindSermon]...)
	content.SortByDate(all)
	return all[:min(feedSize, len(all))]
}

func (a *App) renderRSS(c echo.Context, snap *Snapshot) error {
	base := a.Config.URL
	info := a.siteInfo()
	entries := feedEntries(snap)

	items := make([]rssItem, 0, len(entries))
	for _, e := range entries {
		link := BuildURL(base, e.Link())
		item := rssItem{
			Title:       e.Title,
			Link:        link,
			Description: e.Description(),
			Categories:  append([]string{e.Kind.Title()}, e.Tags...),
			GUID:        link,
		}
		if !e.Date.IsZero() {
			item.PubDate = e.Date.Format(time.RFC1123Z)
		}
		if e.Preacher != "" && info.Email != "" {
			item.Author = info.Email + " (" + e.Preacher + ")"
		}
		items = append(items, item)
	}

	description := a.Config.Description
	if description == "" {
		description = info.Tagline
	}
	feed := rssXML{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       info.Name,
			Link:        BuildURL(base),
			Description: description,
			Self: rssLink{
				Href: FileURL(base, "feed.xml"),
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: items,
		},
	}
	if len(entries) > 0 && !entries[0].Date.IsZero() {
		feed.Channel.LastBuildDate = entries[0].Date.Format(time.RFC1123Z)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}
