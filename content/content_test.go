package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sermons() []Entry {
	return []Entry{
		{Kind: KindSermon, Slug: "c", Title: "Living Hope", Date: day("2024-04-07"), Tags: []string{"Easter", "hope"}, Preacher: "Pastor Kim", Series: "Resurrection", Scripture: "1 Peter 1:3"},
		{Kind: KindSermon, Slug: "b", Title: "He Is Risen", Date: day("2024-03-31"), Tags: []string{"easter"}, Preacher: "Pastor Lee", Series: "Resurrection"},
		{Kind: KindSermon, Slug: "a", Title: "The Good Shepherd", Date: day("2023-11-12"), Tags: []string{"psalms"}, Preacher: "Pastor Kim", Summary: "Psalm 23 and the care of God"},
	}
}

func TestFilterApply(t *testing.T) {
	entries := sermons()
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero", Filter{}, []string{"c", "b", "a"}},
		{"query title", Filter{Query: "risen"}, []string{"b"}},
		{"query summary", Filter{Query: "PSALM 23"}, []string{"a"}},
		{"query scripture", Filter{Query: "peter"}, []string{"c"}},
		{"tag normalized", Filter{Tag: " EASTER "}, []string{"c", "b"}},
		{"year", Filter{Year: 2023}, []string{"a"}},
		{"preacher", Filter{Preacher: "pastor kim"}, []string{"c", "a"}},
		{"series and year", Filter{Series: "resurrection", Year: 2024}, []string{"c", "b"}},
		{"no match", Filter{Tag: "advent"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range tt.filter.Apply(entries) {
				got = append(got, e.Slug)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterValues(t *testing.T) {
	f := Filter{Query: "hope", Year: 2024}
	assert.Equal(t, map[string]string{"q": "hope", "year": "2024"}, f.Values())
	assert.Empty(t, Filter{}.Values())
}

func TestFacets(t *testing.T) {
	entries := sermons()
	assert.Equal(t, []string{"easter", "hope", "psalms"}, Tags(entries))
	assert.Equal(t, []int{2024, 2023}, Years(entries))
	assert.Equal(t, []string{"Pastor Kim", "Pastor Lee"}, Preachers(entries))
	assert.Equal(t, []string{"Resurrection"}, SeriesList(entries))
}

func TestSortByDate(t *testing.T) {
	entries := []Entry{
		{Title: "B", Date: day("2024-01-01")},
		{Title: "C", Date: day("2024-02-01")},
		{Title: "A", Date: day("2024-01-01")},
	}
	SortByDate(entries)
	assert.Equal(t, "C", entries[0].Title)
	assert.Equal(t, "A", entries[1].Title)
	assert.Equal(t, "B", entries[2].Title)
}

func TestRelated(t *testing.T) {
	entries := sermons()
	entries = append(entries, Entry{Kind: KindNews, Slug: "n", Tags: []string{"easter"}})

	got := Related(entries[0], entries, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Slug)

	assert.Empty(t, Related(entries[2], entries, 5))
	assert.Len(t, Related(Entry{Kind: KindSermon, Slug: "x", Tags: []string{"easter", "psalms"}}, entries, 2), 2)
}

func TestNeighbors(t *testing.T) {
	entries := sermons()

	older, newer := Neighbors(entries, "b")
	require.NotNil(t, older)
	require.NotNil(t, newer)
	assert.Equal(t, "a", older.Slug)
	assert.Equal(t, "c", newer.Slug)

	older, newer = Neighbors(entries, "c")
	assert.Nil(t, newer)
	assert.Equal(t, "b", older.Slug)

	older, newer = Neighbors(entries, "missing")
	assert.Nil(t, older)
	assert.Nil(t, newer)
}

func TestLatest(t *testing.T) {
	entries := sermons()
	e, ok := Latest(entries, day("2024-04-01"))
	require.True(t, ok)
	assert.Equal(t, "b", e.Slug)

	_, ok = Latest(entries, day("2020-01-01"))
	assert.False(t, ok)
}

func TestPaginate(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	tests := []struct {
		page      int
		wantFirst int
		wantLen   int
		wantNum   int
		wantLinks []int
	}{
		{1, 0, 5, 1, []int{1, 2, 3, 4, 5}},
		{3, 10, 5, 3, []int{1, 2, 3, 4, 5}},
		{4, 15, 5, 4, []int{1, 2, 3, 4, 5}},
		{5, 20, 3, 5, []int{1, 2, 3, 4, 5}},
		{0, 0, 5, 1, []int{1, 2, 3, 4, 5}},
		{99, 20, 3, 5, []int{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		p := Paginate(items, tt.page, 5)
		assert.Equal(t, tt.wantNum, p.Number, "page %d", tt.page)
		require.Len(t, p.Items, tt.wantLen, "page %d", tt.page)
		assert.Equal(t, tt.wantFirst, p.Items[0], "page %d", tt.page)
		assert.Equal(t, tt.wantLinks, p.Links, "page %d", tt.page)
		assert.Equal(t, 5, p.TotalPages)
		assert.Equal(t, 23, p.Total)
	}
}

func TestPaginateWindowSlides(t *testing.T) {
	items := make([]string, 100)
	p := Paginate(items, 6, 10)
	assert.Equal(t, []int{4, 5, 6, 7, 8}, p.Links)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())
	assert.Equal(t, 5, p.Prev())
	assert.Equal(t, 7, p.Next())

	p = Paginate(items, 10, 10)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, p.Links)
	assert.False(t, p.HasNext())
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate([]Entry(nil), 3, 10)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.TotalPages)
	assert.Empty(t, p.Items)
	assert.Equal(t, []int{1}, p.Links)
	assert.False(t, p.HasPrev())
	assert.False(t, p.HasNext())
}

func TestGroupStaff(t *testing.T) {
	staff := []Staff{
		{Name: "Grace", Department: "Music", Order: 3},
		{Name: "Daniel", Department: "Pastoral", Order: 1},
		{Name: "Anna", Department: "Pastoral", Order: 2},
		{Name: "Ben", Department: "Music", Order: 2},
		{Name: "Zed", Order: 9},
	}
	groups := GroupStaff(staff)
	require.Len(t, groups, 3)
	assert.Equal(t, "Pastoral", groups[0].Department)
	assert.Equal(t, "Daniel", groups[0].Members[0].Name)
	assert.Equal(t, "Anna", groups[0].Members[1].Name)
	assert.Equal(t, "Music", groups[1].Department)
	assert.Equal(t, []string{"Ben", "Grace"}, []string{groups[1].Members[0].Name, groups[1].Members[1].Name})
	assert.Equal(t, "Staff", groups[2].Department)
	// input untouched
	assert.Equal(t, "Grace", staff[0].Name)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Easter Sunday!  ", "easter-sunday"},
		{"Psalm 23: The Lord's Care", "psalm-23-the-lord-s-care"},
		{"주일 예배", "주일-예배"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.input), tt.input)
	}
}

func TestDeriveSlug(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"explicit", Entry{Kind: KindSermon, Slug: "Custom Slug", Title: "x"}, "custom-slug"},
		{"sermon dated", Entry{Kind: KindSermon, Title: "He Is Risen", Date: day("2024-03-31")}, "2024-03-31-he-is-risen"},
		{"bulletin date only", Entry{Kind: KindBulletin, Date: day("2024-03-31")}, "2024-03-31"},
		{"news title", Entry{Kind: KindNews, Title: "Spring Picnic", Date: day("2024-05-01")}, "spring-picnic"},
		{"id fallback", Entry{Kind: KindNews, ID: "1a2b-3c4d"}, "1a2b3c4d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSlug(tt.entry))
		})
	}
}

func TestAssignSlugsDeduplicates(t *testing.T) {
	entries := []Entry{
		{Kind: KindNews, Title: "Update"},
		{Kind: KindNews, Title: "Update"},
		{Kind: KindNews, Title: "update!"},
	}
	AssignSlugs(entries)
	assert.Equal(t, "update", entries[0].Slug)
	assert.Equal(t, "update-2", entries[1].Slug)
	assert.Equal(t, "update-3", entries[2].Slug)

	clash := []Entry{
		{Kind: KindNews, Title: "Update"},
		{Kind: KindNews, Title: "Update"},
		{Kind: KindNews, Title: "Update 2"},
	}
	AssignSlugs(clash)
	assert.Equal(t, []string{"update", "update-2", "update-2-2"},
		[]string{clash[0].Slug, clash[1].Slug, clash[2].Slug})
}

func TestEntryHelpers(t *testing.T) {
	e := Entry{Kind: KindBulletin, Slug: "2024-03-31", Date: day("2024-03-31")}
	assert.Equal(t, "/bulletins/2024-03-31/", e.Link())
	assert.Equal(t, "March 31, 2024", e.DateLabel())
	assert.Equal(t, "2024-03-31", e.ISODate())
	assert.Equal(t, "", Entry{}.DateLabel())
	assert.True(t, KindNews.Valid())
	assert.False(t, Kind("podcast").Valid())
	assert.Equal(t, "Sermons", KindSermon.Title())
}
