package notion

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
)

func rich(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s, Text: &notionapi.Text{Content: s}}}
}

func dateProp(start, end time.Time) *notionapi.DateProperty {
	s := notionapi.Date(start)
	obj := &notionapi.DateObject{Start: &s}
	if !end.IsZero() {
		e := notionapi.Date(end)
		obj.End = &e
	}
	return &notionapi.DateProperty{Date: obj}
}

func sermonPage() notionapi.Page {
	return notionapi.Page{
		ID:             "page-1",
		LastEditedTime: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		Cover:          &notionapi.Image{External: &notionapi.FileObject{URL: "https://img.example/cover.jpg"}},
		Properties: notionapi.Properties{
			"Name":      &notionapi.TitleProperty{Title: rich("He Is Risen ")},
			"Date":      dateProp(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), time.Time{}),
			"Tags":      &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "Easter"}, {Name: " "}, {Name: "Hope"}}},
			"Preacher":  &notionapi.SelectProperty{Select: notionapi.Option{Name: "Pastor Lee"}},
			"Scripture": &notionapi.RichTextProperty{RichText: rich("Luke 24:1-12")},
			"Video":     &notionapi.URLProperty{URL: "https://youtu.be/abc123"},
			"Published": &notionapi.CheckboxProperty{Checkbox: true},
			"Files": &notionapi.FilesProperty{Files: []notionapi.File{
				{Name: "notes.pdf", File: &notionapi.FileObject{URL: "https://files.notion.example/notes.pdf"}},
				{Name: "empty"},
			}},
		},
	}
}

func TestMappingEntry(t *testing.T) {
	e, err := DefaultMapping().Entry(content.KindSermon, sermonPage())
	require.NoError(t, err)

	assert.Equal(t, "page-1", e.ID)
	assert.Equal(t, "He Is Risen", e.Title)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, []string{"Easter", "Hope"}, e.Tags)
	assert.Equal(t, "Pastor Lee", e.Preacher)
	assert.Equal(t, "Luke 24:1-12", e.Scripture)
	assert.Equal(t, "https://youtu.be/abc123", e.VideoURL)
	assert.Equal(t, "https://img.example/cover.jpg", e.Cover)
	assert.True(t, e.Published)
	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "notes.pdf", e.Attachments[0].Name)
	assert.Empty(t, e.Slug)
}

func TestMappingEntryUnpublishedAndMissingTitle(t *testing.T) {
	p := sermonPage()
	p.Properties["Published"] = &notionapi.CheckboxProperty{Checkbox: false}
	e, err := DefaultMapping().Entry(content.KindSermon, p)
	require.NoError(t, err)
	assert.False(t, e.Published)

	p.Properties["Name"] = &notionapi.TitleProperty{}
	_, err = DefaultMapping().Entry(content.KindSermon, p)
	assert.Error(t, err)
}

func TestMappingTitleFallback(t *testing.T) {
	p := notionapi.Page{ID: "x", Properties: notionapi.Properties{
		"Title": &notionapi.TitleProperty{Title: rich("Spring Picnic")},
	}}
	e, err := DefaultMapping().Entry(content.KindNews, p)
	require.NoError(t, err)
	assert.Equal(t, "Spring Picnic", e.Title)
}

func TestMappingEvent(t *testing.T) {
	kst := time.FixedZone("", 9*60*60)
	tests := []struct {
		name       string
		props      notionapi.Properties
		wantAllDay bool
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name: "all-day range",
			props: notionapi.Properties{
				"Name": &notionapi.TitleProperty{Title: rich("Retreat")},
				"Date": dateProp(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC)),
			},
			wantAllDay: true,
			wantStart:  time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "timed without end",
			props: notionapi.Properties{
				"Name": &notionapi.TitleProperty{Title: rich("Prayer")},
				"Date": dateProp(time.Date(2024, 4, 9, 6, 0, 0, 0, kst), time.Time{}),
			},
			wantStart: time.Date(2024, 4, 9, 6, 0, 0, 0, kst),
			wantEnd:   time.Date(2024, 4, 9, 7, 0, 0, 0, kst),
		},
		{
			name: "separate end property",
			props: notionapi.Properties{
				"Name": &notionapi.TitleProperty{Title: rich("Concert")},
				"Date": dateProp(time.Date(2024, 4, 9, 19, 0, 0, 0, kst), time.Time{}),
				"End":  dateProp(time.Date(2024, 4, 9, 21, 30, 0, 0, kst), time.Time{}),
			},
			wantStart: time.Date(2024, 4, 9, 19, 0, 0, 0, kst),
			wantEnd:   time.Date(2024, 4, 9, 21, 30, 0, 0, kst),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := DefaultMapping().Event(notionapi.Page{ID: "ev", Properties: tt.props})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllDay, e.AllDay)
			assert.True(t, tt.wantStart.Equal(e.Start), "start %v", e.Start)
			assert.True(t, tt.wantEnd.Equal(e.End), "end %v", e.End)
		})
	}

	_, err := DefaultMapping().Event(notionapi.Page{ID: "ev", Properties: notionapi.Properties{
		"Name": &notionapi.TitleProperty{Title: rich("No date")},
	}})
	assert.Error(t, err)
}

func TestMappingStaff(t *testing.T) {
	p := notionapi.Page{ID: "s1", Properties: notionapi.Properties{
		"Name":       &notionapi.TitleProperty{Title: rich("Daniel Park")},
		"Role":       &notionapi.RichTextProperty{RichText: rich("Senior Pastor")},
		"Department": &notionapi.SelectProperty{Select: notionapi.Option{Name: "Pastoral"}},
		"Email":      &notionapi.EmailProperty{Email: "daniel@grace.example"},
		"Phone":      &notionapi.PhoneNumberProperty{PhoneNumber: "555-0100"},
		"Order":      &notionapi.NumberProperty{Number: 1},
		"Photo": &notionapi.FilesProperty{Files: []notionapi.File{
			{Name: "daniel.jpg", External: &notionapi.FileObject{URL: "https://img.example/daniel.jpg"}},
		}},
	}}
	s, err := DefaultMapping().Staff(p)
	require.NoError(t, err)
	assert.Equal(t, "Daniel Park", s.Name)
	assert.Equal(t, "Senior Pastor", s.Role)
	assert.Equal(t, "Pastoral", s.Department)
	assert.Equal(t, "daniel@grace.example", s.Email)
	assert.Equal(t, "555-0100", s.Phone)
	assert.Equal(t, 1, s.Order)
	assert.Equal(t, "https://img.example/daniel.jpg", s.Photo)
}

func TestRichText(t *testing.T) {
	in := []notionapi.RichText{
		{PlainText: "Read ", Text: &notionapi.Text{Content: "Read "}},
		{
			PlainText:   "this",
			Text:        &notionapi.Text{Content: "this", Link: &notionapi.Link{Url: "https://grace.example"}},
			Annotations: &notionapi.Annotations{Bold: true, Color: "red"},
		},
		{PlainText: "@Sunday", Href: "https://notion.so/x"},
	}
	got := RichText(in)
	require.Len(t, got, 3)
	assert.Equal(t, blocks.RichText{Text: "Read "}, got[0])
	assert.Equal(t, blocks.RichText{Text: "this", Href: "https://grace.example", Bold: true, Color: "red"}, got[1])
	assert.Equal(t, blocks.RichText{Text: "@Sunday", Href: "https://notion.so/x"}, got[2])
	assert.Nil(t, RichText(nil))
}

func TestBlockConversion(t *testing.T) {
	emoji := notionapi.Emoji("🙏")
	tests := []struct {
		name  string
		in    notionapi.Block
		check func(t *testing.T, b blocks.Block)
	}{
		{
			name: "paragraph",
			in:   &notionapi.ParagraphBlock{BasicBlock: notionapi.BasicBlock{ID: "p"}, Paragraph: notionapi.Paragraph{RichText: rich("hi")}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.Paragraph, b.Type)
				assert.Equal(t, "p", b.ID)
				assert.Equal(t, "hi", blocks.PlainText(b.RichText))
			},
		},
		{
			name: "to-do",
			in:   &notionapi.ToDoBlock{ToDo: notionapi.ToDo{RichText: rich("bring food"), Checked: true}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.ToDo, b.Type)
				assert.True(t, b.Checked)
			},
		},
		{
			name: "callout",
			in:   &notionapi.CalloutBlock{Callout: notionapi.Callout{RichText: rich("pray"), Icon: &notionapi.Icon{Emoji: &emoji}}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.Callout, b.Type)
				assert.Equal(t, "🙏", b.Icon)
			},
		},
		{
			name: "hosted image",
			in: &notionapi.ImageBlock{BasicBlock: notionapi.BasicBlock{ID: "img"}, Image: notionapi.Image{
				File:    &notionapi.FileObject{URL: "https://s3.example/a.png"},
				Caption: rich("Choir"),
			}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.Image, b.Type)
				assert.Equal(t, "https://s3.example/a.png", b.URL)
				assert.Equal(t, "Choir", blocks.PlainText(b.Caption))
			},
		},
		{
			name: "code",
			in:   &notionapi.CodeBlock{Code: notionapi.Code{RichText: rich("x"), Language: "go"}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.Code, b.Type)
				assert.Equal(t, "go", b.Language)
			},
		},
		{
			name: "table",
			in:   &notionapi.TableBlock{Table: notionapi.Table{TableWidth: 2, HasColumnHeader: true}},
			check: func(t *testing.T, b blocks.Block) {
				assert.Equal(t, blocks.Table, b.Type)
				assert.True(t, b.ColumnHeader)
				assert.False(t, b.RowHeader)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Block(tt.in)
			require.True(t, ok)
			tt.check(t, b)
		})
	}

	_, ok := Block(&notionapi.ChildPageBlock{})
	assert.False(t, ok)
}

func TestFoldTable(t *testing.T) {
	row := func(cells ...string) blocks.Block {
		b, ok := Block(&notionapi.TableRowBlock{TableRow: notionapi.TableRow{Cells: [][]notionapi.RichText{rich(cells[0]), rich(cells[1])}}})
		require.True(t, ok)
		return b
	}
	table := blocks.Block{Type: blocks.Table, Children: []blocks.Block{row("Time", "Service"), row("9:00", "English")}}
	foldTable(&table)
	assert.Nil(t, table.Children)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "English", blocks.PlainText(table.Rows[1][1]))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&notionapi.Error{Status: 429}))
	assert.True(t, Retryable(fmt.Errorf("query: %w", &notionapi.Error{Status: 502})))
	assert.False(t, Retryable(&notionapi.Error{Status: 400}))
	assert.False(t, Retryable(errors.New("boom")))
}

func TestDatabasesFor(t *testing.T) {
	dbs := Databases{Sermons: "s", Bulletins: "b", News: "n"}
	assert.Equal(t, "s", dbs.For(content.KindSermon))
	assert.Equal(t, "b", dbs.For(content.KindBulletin))
	assert.Equal(t, "n", dbs.For(content.KindNews))
	assert.Equal(t, "", dbs.For(content.Kind("other")))
}
