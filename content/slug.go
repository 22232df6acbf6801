package content

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugify converts a title to a URL-safe slug. Letters of any script are
// kept (lowercased) so non-Latin titles still produce readable slugs.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// DeriveSlug returns the slug for an entry that has no explicit one.
// Sermons and bulletins are dated ("2024-03-31-easter-sunday"); news uses
// the title alone. When nothing usable remains the Notion ID is used.
func DeriveSlug(e Entry) string {
	if s := Slugify(e.Slug); s != "" {
		return s
	}
	slug := Slugify(e.Title)
	if (e.Kind == KindSermon || e.Kind == KindBulletin) && !e.Date.IsZero() {
		if slug == "" {
			return e.Date.Format("2006-01-02")
		}
		slug = e.Date.Format("2006-01-02") + "-" + slug
	}
	if slug == "" {
		slug = strings.ReplaceAll(e.ID, "-", "")
	}
	return slug
}

// AssignSlugs fills every entry's Slug and makes them unique within the
// list by appending -2, -3 and so on to later duplicates. A suffix already
// taken by another entry is skipped.
func AssignSlugs(entries []Entry) {
	taken := make(map[string]bool, len(entries))
	for i := range entries {
		base := DeriveSlug(entries[i])
		slug := base
		for n := 2; taken[slug]; n++ {
			slug = base + "-" + strconv.Itoa(n)
		}
		taken[slug] = true
		entries[i].Slug = slug
	}
}
