// Package blocks renders Notion page content (a tree of blocks with rich text)
// as HTML, exposed as a templ component.
package blocks

// Block types understood by the renderer. Anything else is skipped.
const (
	Paragraph    = "paragraph"
	Heading1     = "heading_1"
	Heading2     = "heading_2"
	Heading3     = "heading_3"
	BulletedItem = "bulleted_list_item"
	NumberedItem = "numbered_list_item"
	ToDo         = "to_do"
	Toggle       = "toggle"
	Quote        = "quote"
	Callout      = "callout"
	Code         = "code"
	Divider      = "divider"
	Image        = "image"
	Video        = "video"
	Embed        = "embed"
	Bookmark     = "bookmark"
	Table        = "table"
)

// RichText is one styled run of text.
type RichText struct {
	Text          string `json:"text"`
	Href          string `json:"href,omitempty"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

// Block is a single content block. Which fields are meaningful depends on Type.
type Block struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	RichText []RichText `json:"rich_text,omitempty"`
	Children []Block    `json:"children,omitempty"`

	Checked  bool       `json:"checked,omitempty"`  // to_do
	Language string     `json:"language,omitempty"` // code
	URL      string     `json:"url,omitempty"`      // image, video, embed, bookmark
	Caption  []RichText `json:"caption,omitempty"`
	Icon     string     `json:"icon,omitempty"` // callout emoji

	// table: each row is a list of cells, each cell a list of runs.
	Rows         [][][]RichText `json:"rows,omitempty"`
	ColumnHeader bool           `json:"column_header,omitempty"`
	RowHeader    bool           `json:"row_header,omitempty"`
}

// Walk calls fn for every block in the tree, depth first.
func Walk(bs []Block, fn func(b *Block)) {
	for i := range bs {
		fn(&bs[i])
		Walk(bs[i].Children, fn)
	}
}

// PlainText concatenates the text of rts without formatting.
func PlainText(rts []RichText) string {
	n := 0
	for _, rt := range rts {
		n += len(rt.Text)
	}
	b := make([]byte, 0, n)
	for _, rt := range rts {
		b = append(b, rt.Text...)
	}
	return string(b)
}

// Heading is an entry of a page outline.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// Outline returns the headings of bs in document order with the same ids
// Render assigns to them.
func Outline(bs []Block) []Heading {
	ids := newIDSet()
	var out []Heading
	Walk(bs, func(b *Block) {
		level := headingLevel(b.Type)
		if level == 0 {
			return
		}
		text := PlainText(b.RichText)
		out = append(out, Heading{Level: level, Text: text, ID: ids.next(text)})
	})
	return out
}

func headingLevel(t string) int {
	switch t {
	case Heading1:
		return 1
	case Heading2:
		return 2
	case Heading3:
		return 3
	}
	return 0
}
