// Package content defines the CMS-backed content types of the site (sermons,
// bulletins, news posts and staff) and the list shaping applied to them.
package content

import (
	"strings"
	"time"

	"github.com/eringen/chapel/blocks"
)

// Kind identifies which Notion database an Entry came from.
type Kind string

const (
	KindSermon   Kind = "sermon"
	KindBulletin Kind = "bulletin"
	KindNews     Kind = "news"
)

// Kinds lists every entry kind in navigation order.
var Kinds = []Kind{KindSermon, KindBulletin, KindNews}

// Path is the URL prefix entries of this kind are served under.
func (k Kind) Path() string {
	switch k {
	case KindSermon:
		return "/sermons/"
	case KindBulletin:
		return "/bulletins/"
	case KindNews:
		return "/news/"
	}
	return "/"
}

// Title is the human-readable section name.
func (k Kind) Title() string {
	switch k {
	case KindSermon:
		return "Sermons"
	case KindBulletin:
		return "Bulletins"
	case KindNews:
		return "News"
	}
	return string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Attachment is a downloadable file attached to an entry (bulletin PDFs).
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Entry is one page of a sermon, bulletin or news database.
type Entry struct {
	Kind        Kind
	ID          string
	Slug        string
	Title       string
	Date        time.Time
	Tags        []string
	Summary     string
	Preacher    string
	Scripture   string
	Series      string
	VideoURL    string
	Cover       string
	Attachments []Attachment
	Blocks      []blocks.Block
	Published   bool
	UpdatedAt   time.Time
}

// Link is the site-relative URL of the entry.
func (e Entry) Link() string {
	return e.Kind.Path() + e.Slug + "/"
}

// DateLabel formats the entry date for display.
func (e Entry) DateLabel() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format("January 2, 2006")
}

// ISODate formats the entry date as YYYY-MM-DD.
func (e Entry) ISODate() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format("2006-01-02")
}

// Description is the summary, falling back to an excerpt of the body.
func (e Entry) Description() string {
	if s := strings.TrimSpace(e.Summary); s != "" {
		return s
	}
	return blocks.Excerpt(e.Blocks, 160)
}

// Staff is a member of the staff directory.
type Staff struct {
	ID         string
	Name       string
	Role       string
	Department string
	Email      string
	Phone      string
	Photo      string
	Bio        string
	Order      int
}

// SyncRun records one pass of mirroring the CMS into the local store.
type SyncRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[string]int
	Err        string
}

// Duration is how long the run took, zero while running.
func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
}

// OK reports whether the run finished without error.
func (r SyncRun) OK() bool {
	return !r.FinishedAt.IsZero() && r.Err == ""
}
