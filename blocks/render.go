package blocks

import (
	"bytes"
	"context"
	"html"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a-h/templ"
)

// Component returns a templ.Component that renders bs as HTML.
func Component(bs []Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, bs)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// HTML renders bs for embedding in an html/template.
func HTML(bs []Block) template.HTML {
	var buf bytes.Buffer
	Render(&buf, bs)
	return template.HTML(buf.String())
}

type renderer struct {
	buf    *bytes.Buffer
	ids    *idSet
	images int
}

// Render writes the HTML representation of bs to buf.
func Render(buf *bytes.Buffer, bs []Block) {
	r := &renderer{buf: buf, ids: newIDSet()}
	r.blocks(bs)
}

func (r *renderer) blocks(bs []Block) {
	for i := 0; i < len(bs); {
		switch bs[i].Type {
		case BulletedItem, NumberedItem, ToDo:
			// Notion stores list items as siblings; group each run into one list.
			j := i + 1
			for j < len(bs) && bs[j].Type == bs[i].Type {
				j++
			}
			r.list(bs[i].Type, bs[i:j])
			i = j
		default:
			r.block(bs[i])
			i++
		}
	}
}

func (r *renderer) list(typ string, items []Block) {
	start, end := "<ul>", "</ul>"
	switch typ {
	case NumberedItem:
		start, end = "<ol>", "</ol>"
	case ToDo:
		start = `<ul class="todo">`
	}
	r.buf.WriteString(start)
	for _, it := range items {
		if typ == ToDo {
			if it.Checked {
				r.buf.WriteString(`<li class="todo-item checked"><input type="checkbox" disabled checked/> `)
			} else {
				r.buf.WriteString(`<li class="todo-item"><input type="checkbox" disabled/> `)
			}
		} else {
			r.buf.WriteString("<li>")
		}
		r.buf.WriteString(FormatRichText(it.RichText))
		r.blocks(it.Children)
		r.buf.WriteString("</li>")
	}
	r.buf.WriteString(end)
}

func (r *renderer) block(b Block) {
	switch b.Type {
	case Paragraph:
		if text := FormatRichText(b.RichText); text != "" {
			r.buf.WriteString("<p>" + text + "</p>")
		}
		if len(b.Children) > 0 {
			r.buf.WriteString(`<div class="indent">`)
			r.blocks(b.Children)
			r.buf.WriteString("</div>")
		}
	case Heading1, Heading2, Heading3:
		// The page title owns <h1>, so Notion headings shift down a level.
		tag := "h" + strconv.Itoa(headingLevel(b.Type)+1)
		id := r.ids.next(PlainText(b.RichText))
		heading := "<" + tag + ` id="` + id + `">` + FormatRichText(b.RichText) + "</" + tag + ">"
		if len(b.Children) == 0 {
			r.buf.WriteString(heading)
			return
		}
		r.buf.WriteString(`<details class="toggle-heading"><summary>` + heading + "</summary>")
		r.blocks(b.Children)
		r.buf.WriteString("</details>")
	case Toggle:
		r.buf.WriteString(`<details class="toggle"><summary>` + FormatRichText(b.RichText) + "</summary>")
		r.blocks(b.Children)
		r.buf.WriteString("</details>")
	case Quote:
		r.buf.WriteString("<blockquote>" + FormatRichText(b.RichText))
		r.blocks(b.Children)
		r.buf.WriteString("</blockquote>")
	case Callout:
		r.buf.WriteString(`<div class="callout">`)
		if b.Icon != "" {
			r.buf.WriteString(`<span class="callout-icon" aria-hidden="true">` + html.EscapeString(b.Icon) + "</span>")
		}
		r.buf.WriteString(`<div class="callout-body">` + FormatRichText(b.RichText))
		r.blocks(b.Children)
		r.buf.WriteString("</div></div>")
	case Code:
		r.code(b)
	case Divider:
		r.buf.WriteString("<hr/>")
	case Image:
		r.image(b)
	case Video:
		r.video(b)
	case Embed:
		if src, ok := EmbedURL(b.URL); ok {
			r.iframe(src, PlainText(b.Caption))
			return
		}
		if href := SafeURL(b.URL); href != "" {
			r.buf.WriteString(`<p class="embed"><a href="` + href + `" target="_blank" rel="noopener noreferrer">` + html.EscapeString(b.URL) + "</a></p>")
		}
	case Bookmark:
		href := SafeURL(b.URL)
		if href == "" {
			return
		}
		label := FormatRichText(b.Caption)
		if label == "" {
			label = html.EscapeString(b.URL)
		}
		r.buf.WriteString(`<a class="bookmark" href="` + href + `" target="_blank" rel="noopener noreferrer">` + label + "</a>")
	case Table:
		r.table(b)
	}
}

func (r *renderer) code(b Block) {
	text := html.EscapeString(PlainText(b.RichText))
	lang := strings.ToLower(strings.TrimSpace(b.Language))
	if lang == "" || lang == "plain text" {
		r.buf.WriteString(`<pre class="code-block"><code>` + text + "</code></pre>")
		return
	}
	escapedLang := html.EscapeString(lang)
	langClass := html.EscapeString(strings.ReplaceAll(lang, " ", "-"))
	r.buf.WriteString(`<div class="code-block-wrapper"><span class="code-lang">` + escapedLang + "</span>")
	r.buf.WriteString(`<pre class="code-block"><code class="language-` + langClass + `">` + text + "</code></pre></div>")
}

func (r *renderer) image(b Block) {
	src := SafeURL(b.URL)
	if src == "" {
		return
	}
	r.images++
	loadAttr := `loading="lazy"`
	if r.images == 1 {
		loadAttr = `fetchpriority="high"`
	}
	alt := html.EscapeString(PlainText(b.Caption))
	r.buf.WriteString(`<figure class="image"><img src="` + src + `" alt="` + alt + `" ` + loadAttr + ` decoding="async"/>`)
	if caption := FormatRichText(b.Caption); caption != "" {
		r.buf.WriteString("<figcaption>" + caption + "</figcaption>")
	}
	r.buf.WriteString("</figure>")
}

func (r *renderer) video(b Block) {
	if src, ok := EmbedURL(b.URL); ok {
		r.iframe(src, PlainText(b.Caption))
		return
	}
	src := SafeURL(b.URL)
	if src == "" {
		return
	}
	r.buf.WriteString(`<figure class="video"><video controls preload="metadata" src="` + src + `"></video>`)
	if caption := FormatRichText(b.Caption); caption != "" {
		r.buf.WriteString("<figcaption>" + caption + "</figcaption>")
	}
	r.buf.WriteString("</figure>")
}

func (r *renderer) iframe(src, title string) {
	if title == "" {
		title = "Embedded video"
	}
	r.buf.WriteString(`<div class="video-embed"><iframe src="` + html.EscapeString(src) + `" title="` + html.EscapeString(title) +
		`" loading="lazy" allow="accelerometer; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe></div>`)
}

func (r *renderer) table(b Block) {
	width := 0
	for _, row := range b.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	r.buf.WriteString(`<div class="table-wrap"><table>`)
	bodyOpen := false
	for i, row := range b.Rows {
		header := b.ColumnHeader && i == 0
		if header {
			r.buf.WriteString("<thead>")
		} else if !bodyOpen {
			r.buf.WriteString("<tbody>")
			bodyOpen = true
		}
		r.buf.WriteString("<tr>")
		for c := 0; c < width; c++ {
			var cell []RichText
			if c < len(row) {
				cell = row[c]
			}
			tag := "td"
			if header || (b.RowHeader && c == 0) {
				tag = "th"
			}
			r.buf.WriteString("<" + tag + ">" + FormatRichText(cell) + "</" + tag + ">")
		}
		r.buf.WriteString("</tr>")
		if header {
			r.buf.WriteString("</thead>")
		}
	}
	if bodyOpen {
		r.buf.WriteString("</tbody>")
	}
	r.buf.WriteString("</table></div>")
}

// FormatRichText renders styled runs as inline HTML. Annotations nest in a
// fixed order (code innermost, link outermost) so output is deterministic.
func FormatRichText(rts []RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(formatRun(rt))
	}
	return sb.String()
}

func formatRun(rt RichText) string {
	if rt.Text == "" {
		return ""
	}
	s := strings.ReplaceAll(html.EscapeString(rt.Text), "\n", "<br/>")
	if rt.Code {
		s = "<code>" + s + "</code>"
	}
	if rt.Bold {
		s = "<strong>" + s + "</strong>"
	}
	if rt.Italic {
		s = "<em>" + s + "</em>"
	}
	if rt.Strikethrough {
		s = "<s>" + s + "</s>"
	}
	if rt.Underline {
		s = "<u>" + s + "</u>"
	}
	if class := colorClass(rt.Color); class != "" {
		s = `<span class="` + class + `">` + s + "</span>"
	}
	if rt.Href != "" {
		if href := SafeURL(rt.Href); href != "" {
			attrs := ""
			if isExternal(rt.Href) {
				attrs = ` target="_blank" rel="noopener noreferrer"`
			}
			s = `<a href="` + href + `"` + attrs + ">" + s + "</a>"
		}
	}
	return s
}

// colorClass maps a Notion color ("red", "blue_background") to a CSS class.
func colorClass(color string) string {
	if color == "" || color == "default" {
		return ""
	}
	var b strings.Builder
	for _, r := range color {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r == '_':
			b.WriteByte('-')
		default:
			return ""
		}
	}
	return "color-" + b.String()
}

func isExternal(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// SafeURL validates raw for use in an HTML attribute and returns it escaped,
// or "" when the scheme is not allowed. Scheme-less references are relative
// and allowed unless browsers would read them as protocol-relative ("//x",
// "/\x").
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if len(val) >= 2 && isSlash(val[0]) && isSlash(val[1]) {
		return ""
	}
	parsed, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

func isSlash(c byte) bool {
	return c == '/' || c == '\\'
}

// EmbedURL converts a YouTube or Vimeo page URL into its embeddable player
// URL. ok is false for anything else.
func EmbedURL(raw string) (src string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	var id string
	switch host {
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case len(segs) == 2 && (segs[0] == "shorts" || segs[0] == "live" || segs[0] == "embed"):
			id = segs[1]
		}
		if validVideoID(id) {
			return "https://www.youtube-nocookie.com/embed/" + id, true
		}
	case "youtu.be":
		if len(segs) == 1 && validVideoID(segs[0]) {
			return "https://www.youtube-nocookie.com/embed/" + segs[0], true
		}
	case "vimeo.com":
		if len(segs) >= 1 && isDigits(segs[0]) {
			return "https://player.vimeo.com/video/" + segs[0], true
		}
	case "player.vimeo.com":
		if len(segs) == 2 && segs[0] == "video" && isDigits(segs[1]) {
			return "https://player.vimeo.com/video/" + segs[1], true
		}
	}
	return "", false
}

func validVideoID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Excerpt returns up to n runes of paragraph text from bs.
func Excerpt(bs []Block, n int) string {
	var parts []string
	total := 0
	Walk(bs, func(b *Block) {
		if total >= n || b.Type != Paragraph {
			return
		}
		t := strings.TrimSpace(PlainText(b.RichText))
		if t == "" {
			return
		}
		parts = append(parts, t)
		total += utf8.RuneCountInString(t) + 1
	})
	return Truncate(strings.Join(parts, " "), n)
}

// Truncate collapses whitespace in s and shortens it to at most n runes,
// cutting at a word boundary and appending an ellipsis.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	cut := string(rs[:n])
	if !unicode.IsSpace(rs[n]) {
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

type idSet struct {
	taken map[string]bool
}

func newIDSet() *idSet {
	return &idSet{taken: make(map[string]bool)}
}

// next returns a unique anchor id for a heading text.
func (s *idSet) next(text string) string {
	base := anchor(text)
	if base == "" {
		base = "section"
	}
	id := base
	for n := 2; s.taken[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s.taken[id] = true
	return id
}

// anchor lowercases text and keeps letters and digits of any script,
// joining the rest with single hyphens.
func anchor(text string) string {
	var b strings.Builder
	prev := false
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
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
