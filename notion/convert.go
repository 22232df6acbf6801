package notion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
)

// tableRow is the Notion type of a table's child rows. Rows are folded into
// their table and never rendered on their own.
const tableRow = "table_row"

// Entry maps a page of a sermon, bulletin or news database.
func (m Mapping) Entry(kind content.Kind, p notionapi.Page) (content.Entry, error) {
	ps := p.Properties
	e := content.Entry{
		Kind:      kind,
		ID:        string(p.ID),
		Title:     m.title(ps),
		Slug:      plain(ps, m.Slug),
		Tags:      list(ps, m.Tags),
		Summary:   plain(ps, m.Summary),
		Preacher:  plain(ps, m.Preacher),
		Scripture: plain(ps, m.Scripture),
		Series:    plain(ps, m.Series),
		VideoURL:  plain(ps, m.Video),
		Cover:     coverURL(p.Cover),
		Published: true,
		UpdatedAt: p.LastEditedTime,
	}
	if e.Title == "" {
		return e, fmt.Errorf("notion: page %s: missing title", p.ID)
	}
	if start, _, _, ok := dateRange(ps, m.Date); ok {
		e.Date = start
	} else if !p.CreatedTime.IsZero() {
		e.Date = p.CreatedTime
	}
	if v, ok := checkbox(ps, m.Published); ok {
		e.Published = v
	}
	for _, f := range files(ps, m.Files) {
		e.Attachments = append(e.Attachments, content.Attachment{Name: f.name, URL: f.url})
	}
	return e, nil
}

// Event maps a page of the schedule database.
func (m Mapping) Event(p notionapi.Page) (schedule.Event, error) {
	ps := p.Properties
	e := schedule.Event{
		ID:          string(p.ID),
		Title:       m.title(ps),
		Location:    plain(ps, m.Location),
		Category:    plain(ps, m.Category),
		Description: plain(ps, m.Description),
		URL:         plain(ps, m.Link),
	}
	if e.Title == "" {
		return e, fmt.Errorf("notion: page %s: missing title", p.ID)
	}
	start, end, allDay, ok := dateRange(ps, m.Date)
	if !ok {
		return e, fmt.Errorf("notion: page %s: missing date", p.ID)
	}
	if end.IsZero() && m.End != "" {
		if s, _, _, ok := dateRange(ps, m.End); ok {
			end = s
		}
	}
	e.Start, e.End, e.AllDay = start, end, allDay
	return schedule.Normalize(e), nil
}

// Staff maps a page of the staff database.
func (m Mapping) Staff(p notionapi.Page) (content.Staff, error) {
	ps := p.Properties
	s := content.Staff{
		ID:         string(p.ID),
		Name:       m.title(ps),
		Role:       plain(ps, m.Role),
		Department: plain(ps, m.Department),
		Email:      plain(ps, m.Email),
		Phone:      plain(ps, m.Phone),
		Bio:        plain(ps, m.Bio),
	}
	if s.Name == "" {
		return s, fmt.Errorf("notion: page %s: missing name", p.ID)
	}
	if fs := files(ps, m.Photo); len(fs) > 0 {
		s.Photo = fs[0].url
	} else {
		s.Photo = coverURL(p.Cover)
	}
	if n, ok := number(ps, m.Order); ok {
		s.Order = int(n)
	}
	return s, nil
}

// title reads the mapped title property, falling back to the page's title
// property whatever it is called.
func (m Mapping) title(ps notionapi.Properties) string {
	if t := strings.TrimSpace(plain(ps, m.Title)); t != "" {
		return t
	}
	for _, p := range ps {
		if tp, ok := p.(*notionapi.TitleProperty); ok {
			return strings.TrimSpace(richPlain(tp.Title))
		}
	}
	return ""
}

// plain reads a property as a single string. Unknown property types read
// as empty.
func plain(ps notionapi.Properties, name string) string {
	if name == "" {
		return ""
	}
	switch p := ps[name].(type) {
	case *notionapi.TitleProperty:
		return strings.TrimSpace(richPlain(p.Title))
	case *notionapi.RichTextProperty:
		return strings.TrimSpace(richPlain(p.RichText))
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			names = append(names, o.Name)
		}
		return strings.Join(names, ", ")
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	}
	return ""
}

// list reads a multi-select (or a comma-separated text) property.
func list(ps notionapi.Properties, name string) []string {
	if name == "" {
		return nil
	}
	var out []string
	switch p := ps[name].(type) {
	case *notionapi.MultiSelectProperty:
		for _, o := range p.MultiSelect {
			if s := strings.TrimSpace(o.Name); s != "" {
				out = append(out, s)
			}
		}
	case *notionapi.SelectProperty:
		if s := strings.TrimSpace(p.Select.Name); s != "" {
			out = append(out, s)
		}
	default:
		for _, s := range strings.Split(plain(ps, name), ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func checkbox(ps notionapi.Properties, name string) (bool, bool) {
	p, ok := ps[name].(*notionapi.CheckboxProperty)
	if !ok || name == "" {
		return false, false
	}
	return p.Checkbox, true
}

func number(ps notionapi.Properties, name string) (float64, bool) {
	p, ok := ps[name].(*notionapi.NumberProperty)
	if !ok || name == "" {
		return 0, false
	}
	return p.Number, true
}

// dateRange reads a date property. Notion sends date-only values without a
// time; those parse to midnight UTC and are reported as all-day.
func dateRange(ps notionapi.Properties, name string) (start, end time.Time, allDay, ok bool) {
	p, _ := ps[name].(*notionapi.DateProperty)
	if p == nil || p.Date == nil || p.Date.Start == nil {
		return start, end, false, false
	}
	start = time.Time(*p.Date.Start)
	if p.Date.End != nil {
		end = time.Time(*p.Date.End)
	}
	return start, end, dateOnly(start), true
}

func dateOnly(t time.Time) bool {
	return t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

type file struct {
	name string
	url  string
}

func files(ps notionapi.Properties, name string) []file {
	p, ok := ps[name].(*notionapi.FilesProperty)
	if !ok || name == "" {
		return nil
	}
	var out []file
	for _, f := range p.Files {
		u := fileURL(f.File, f.External)
		if u == "" {
			continue
		}
		out = append(out, file{name: f.Name, url: u})
	}
	return out
}

func fileURL(hosted, external *notionapi.FileObject) string {
	if hosted != nil && hosted.URL != "" {
		return hosted.URL
	}
	if external != nil {
		return external.URL
	}
	return ""
}

func coverURL(img *notionapi.Image) string {
	if img == nil {
		return ""
	}
	return fileURL(img.File, img.External)
}

func richPlain(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		} else {
			b.WriteString(rt.PlainText)
		}
	}
	return b.String()
}

// RichText converts Notion rich text runs.
func RichText(rts []notionapi.RichText) []blocks.RichText {
	if len(rts) == 0 {
		return nil
	}
	out := make([]blocks.RichText, 0, len(rts))
	for _, rt := range rts {
		r := blocks.RichText{Text: rt.PlainText, Href: rt.Href}
		if rt.Text != nil {
			r.Text = rt.Text.Content
			if rt.Text.Link != nil && rt.Text.Link.Url != "" {
				r.Href = rt.Text.Link.Url
			}
		}
		if a := rt.Annotations; a != nil {
			r.Bold = a.Bold
			r.Italic = a.Italic
			r.Strikethrough = a.Strikethrough
			r.Underline = a.Underline
			r.Code = a.Code
			r.Color = string(a.Color)
		}
		out = append(out, r)
	}
	return out
}

// Block converts a single Notion block without its children. The second
// result is false for block types the site does not render.
func Block(nb notionapi.Block) (blocks.Block, bool) {
	b := blocks.Block{ID: string(nb.GetID())}
	switch v := nb.(type) {
	case *notionapi.ParagraphBlock:
		b.Type = blocks.Paragraph
		b.RichText = RichText(v.Paragraph.RichText)
	case *notionapi.Heading1Block:
		b.Type = blocks.Heading1
		b.RichText = RichText(v.Heading1.RichText)
	case *notionapi.Heading2Block:
		b.Type = blocks.Heading2
		b.RichText = RichText(v.Heading2.RichText)
	case *notionapi.Heading3Block:
		b.Type = blocks.Heading3
		b.RichText = RichText(v.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		b.Type = blocks.BulletedItem
		b.RichText = RichText(v.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		b.Type = blocks.NumberedItem
		b.RichText = RichText(v.NumberedListItem.RichText)
	case *notionapi.ToDoBlock:
		b.Type = blocks.ToDo
		b.RichText = RichText(v.ToDo.RichText)
		b.Checked = v.ToDo.Checked
	case *notionapi.ToggleBlock:
		b.Type = blocks.Toggle
		b.RichText = RichText(v.Toggle.RichText)
	case *notionapi.QuoteBlock:
		b.Type = blocks.Quote
		b.RichText = RichText(v.Quote.RichText)
	case *notionapi.CalloutBlock:
		b.Type = blocks.Callout
		b.RichText = RichText(v.Callout.RichText)
		if v.Callout.Icon != nil && v.Callout.Icon.Emoji != nil {
			b.Icon = string(*v.Callout.Icon.Emoji)
		}
	case *notionapi.CodeBlock:
		b.Type = blocks.Code
		b.RichText = RichText(v.Code.RichText)
		b.Caption = RichText(v.Code.Caption)
		b.Language = v.Code.Language
	case *notionapi.DividerBlock:
		b.Type = blocks.Divider
	case *notionapi.ImageBlock:
		b.Type = blocks.Image
		b.URL = fileURL(v.Image.File, v.Image.External)
		b.Caption = RichText(v.Image.Caption)
	case *notionapi.VideoBlock:
		b.Type = blocks.Video
		b.URL = fileURL(v.Video.File, v.Video.External)
		b.Caption = RichText(v.Video.Caption)
	case *notionapi.EmbedBlock:
		b.Type = blocks.Embed
		b.URL = v.Embed.URL
		b.Caption = RichText(v.Embed.Caption)
	case *notionapi.BookmarkBlock:
		b.Type = blocks.Bookmark
		b.URL = v.Bookmark.URL
		b.Caption = RichText(v.Bookmark.Caption)
	case *notionapi.TableBlock:
		b.Type = blocks.Table
		b.ColumnHeader = v.Table.HasColumnHeader
		b.RowHeader = v.Table.HasRowHeader
	case *notionapi.TableRowBlock:
		b.Type = tableRow
		cells := make([][]blocks.RichText, 0, len(v.TableRow.Cells))
		for _, c := range v.TableRow.Cells {
			cells = append(cells, RichText(c))
		}
		b.Rows = [][][]blocks.RichText{cells}
	default:
		return b, false
	}
	return b, true
}

// foldTable moves a table's fetched row children into its Rows.
func foldTable(b *blocks.Block) {
	if b.Type != blocks.Table {
		return
	}
	for _, c := range b.Children {
		if c.Type == tableRow {
			b.Rows = append(b.Rows, c.Rows...)
		}
	}
	b.Children = nil
}
