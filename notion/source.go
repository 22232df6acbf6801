// Package notion reads the church's Notion databases and maps their pages
// onto the site's content, schedule and staff types.
package notion

import (
	"context"
	"errors"

	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
)

// Source is anything that can produce the site's CMS datasets.
type Source interface {
	Entries(ctx context.Context, kind content.Kind) ([]content.Entry, error)
	Events(ctx context.Context) ([]schedule.Event, error)
	Staff(ctx context.Context) ([]content.Staff, error)
}

// ErrNotConfigured is returned for a dataset whose database ID is empty.
var ErrNotConfigured = errors.New("notion: database not configured")

// Databases holds the Notion database ID of each dataset. Empty IDs disable
// the dataset.
type Databases struct {
	Sermons   string
	Bulletins string
	News      string
	Schedule  string
	Staff     string
}

// For returns the database ID backing kind.
func (d Databases) For(kind content.Kind) string {
	switch kind {
	case content.KindSermon:
		return d.Sermons
	case content.KindBulletin:
		return d.Bulletins
	case content.KindNews:
		return d.News
	}
	return ""
}

// Mapping names the Notion property that holds each field. An empty name
// means the field is not read.
type Mapping struct {
	Title     string
	Date      string
	End       string
	Slug      string
	Tags      string
	Summary   string
	Preacher  string
	Scripture string
	Series    string
	Video     string
	Files     string
	Published string

	Location    string
	Category    string
	Description string
	Link        string

	Role       string
	Department string
	Email      string
	Phone      string
	Photo      string
	Bio        string
	Order      string
}

// DefaultMapping returns the property names used by the church's template
// databases.
func DefaultMapping() Mapping {
	return Mapping{
		Title:       "Name",
		Date:        "Date",
		End:         "End",
		Slug:        "Slug",
		Tags:        "Tags",
		Summary:     "Summary",
		Preacher:    "Preacher",
		Scripture:   "Scripture",
		Series:      "Series",
		Video:       "Video",
		Files:       "Files",
		Published:   "Published",
		Location:    "Location",
		Category:    "Category",
		Description: "Description",
		Link:        "Link",
		Role:        "Role",
		Department:  "Department",
		Email:       "Email",
		Phone:       "Phone",
		Photo:       "Photo",
		Bio:         "Bio",
		Order:       "Order",
	}
}
