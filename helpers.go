package chapel

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
	"github.com/eringen/chapel/siteinfo"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FileURL joins base and a file name without a trailing slash.
func FileURL(base, name string) string {
	return strings.TrimSuffix(BuildURL(base, name), "/")
}

// AbsoluteURL resolves a site-relative path such as a mirrored image
// against base. Absolute URLs are returned unchanged.
func AbsoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func marshalJSONLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ChurchJsonLD returns a JSON-LD string for a schema.org Church.
func ChurchJsonLD(info siteinfo.Info, cfg SiteConfig) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Church",
		"name":     info.Name,
		"url":      BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	} else if info.Tagline != "" {
		data["description"] = info.Tagline
	}
	if info.Address != "" {
		data["address"] = info.Address
	}
	if info.Phone != "" {
		data["telephone"] = info.Phone
	}
	if info.Email != "" {
		data["email"] = info.Email
	}
	if len(info.Socials) > 0 {
		same := make([]string, len(info.Socials))
		for i, s := range info.Socials {
			same[i] = s.URL
		}
		data["sameAs"] = same
	}
	return marshalJSONLD(data)
}

// ArticleJsonLD returns a JSON-LD string for an entry page.
func ArticleJsonLD(e content.Entry, info siteinfo.Info, cfg SiteConfig) string {
	entryURL := BuildURL(cfg.URL, e.Link())
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "Article",
		"headline":      e.Title,
		"description":   e.Description(),
		"datePublished": e.ISODate(),
		"url":           entryURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   entryURL,
		},
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  info.Name,
		},
	}
	if e.Preacher != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  e.Preacher,
		}
	}
	if !e.UpdatedAt.IsZero() {
		data["dateModified"] = e.UpdatedAt.Format(time.RFC3339)
	}
	if e.Cover != "" {
		data["image"] = AbsoluteURL(cfg.URL, e.Cover)
	}
	if len(e.Tags) > 0 {
		data["keywords"] = strings.Join(e.Tags, ", ")
	}
	return marshalJSONLD(data)
}

// EventsJsonLD returns a JSON-LD graph of schema.org Events.
func EventsJsonLD(events []schedule.Event, info siteinfo.Info, cfg SiteConfig, loc *time.Location) string {
	graph := make([]map[string]any, 0, len(events))
	for _, e := range events {
		ev := map[string]any{
			"@type":               "Event",
			"name":                e.Title,
			"eventStatus":         "https://schema.org/EventScheduled",
			"eventAttendanceMode": "https://schema.org/OfflineEventAttendanceMode",
			"organizer": map[string]string{
				"@type": "Church",
				"name":  info.Name,
				"url":   BuildURL(cfg.URL),
			},
		}
		if e.AllDay {
			first, last := schedule.DaySpan(e, loc)
			ev["startDate"] = first.Format("2006-01-02")
			ev["endDate"] = last.Format("2006-01-02")
		} else {
			ev["startDate"] = e.Start.In(loc).Format(time.RFC3339)
			ev["endDate"] = e.End.In(loc).Format(time.RFC3339)
		}
		if e.Location != "" {
			ev["location"] = map[string]string{"@type": "Place", "name": e.Location}
		}
		if e.Description != "" {
			ev["description"] = e.Description
		}
		if e.URL != "" {
			ev["url"] = e.URL
		}
		graph = append(graph, ev)
	}
	return marshalJSONLD(map[string]any{
		"@context": "https://schema.org",
		"@graph":   graph,
	})
}
