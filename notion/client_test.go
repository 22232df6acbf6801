package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// fakeAPI answers Notion API requests from canned JSON and counts the
// requests per path.
type fakeAPI struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies []string
	serve  func(r *http.Request, body string, call int) (int, string)
}

func (f *fakeAPI) client(t *testing.T, dbs Databases) *Client {
	t.Helper()
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		var body string
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
		}
		f.mu.Lock()
		if f.calls == nil {
			f.calls = make(map[string]int)
		}
		f.calls[r.URL.Path]++
		call := f.calls[r.URL.Path]
		if r.Method == http.MethodPost {
			f.bodies = append(f.bodies, body)
		}
		f.mu.Unlock()

		status, payload := f.serve(r, body, call)
		h := http.Header{"Content-Type": {"application/json"}}
		if status == http.StatusTooManyRequests {
			h.Set("Retry-After", "0")
		}
		return &http.Response{
			StatusCode: status,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader(payload)),
			Request:    r,
		}, nil
	})}
	return NewClient("secret_test", dbs,
		WithHTTPClient(hc),
		WithRetry(3, time.Millisecond),
		WithRateLimit(1000, 100),
	)
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func apiError(status int, code string) string {
	return fmt.Sprintf(`{"object":"error","status":%d,"code":%q,"message":"test"}`, status, code)
}

func listJSON(results ...string) string {
	return listPageJSON("", results...)
}

func listPageJSON(next string, results ...string) string {
	cursor := "null"
	if next != "" {
		cursor = fmt.Sprintf("%q", next)
	}
	return fmt.Sprintf(`{"object":"list","results":[%s],"has_more":%t,"next_cursor":%s}`,
		strings.Join(results, ","), next != "", cursor)
}

func richJSON(s string) string {
	return fmt.Sprintf(`[{"type":"text","text":{"content":%q},"plain_text":%q}]`, s, s)
}

func pageJSON(id, title, date string, published bool) string {
	return fmt.Sprintf(`{"object":"page","id":%q,"parent":{"type":"database_id","database_id":"db-news"},"properties":{`+
		`"Name":{"id":"title","type":"title","title":%s},`+
		`"Date":{"id":"d","type":"date","date":{"start":%q}},`+
		`"Published":{"id":"p","type":"checkbox","checkbox":%t}}}`,
		id, richJSON(title), date, published)
}

func blockJSON(id, typ string, children bool, body string) string {
	return fmt.Sprintf(`{"object":"block","id":%q,"type":%q,"has_children":%t,%q:%s}`, id, typ, children, typ, body)
}

func paragraphJSON(id, text string) string {
	return blockJSON(id, "paragraph", false, `{"rich_text":`+richJSON(text)+`}`)
}

func rowJSON(id string, cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = richJSON(c)
	}
	return blockJSON(id, "table_row", false, `{"cells":[`+strings.Join(parts, ",")+`]}`)
}

func TestClientEntries(t *testing.T) {
	api := &fakeAPI{}
	api.serve = func(r *http.Request, body string, call int) (int, string) {
		switch r.URL.Path {
		case "/v1/databases/db-news/query":
			if call == 1 {
				return http.StatusTooManyRequests, apiError(429, "rate_limited")
			}
			var req struct {
				StartCursor string `json:"start_cursor"`
			}
			_ = json.Unmarshal([]byte(body), &req)
			if req.StartCursor == "" {
				return 200, listPageJSON("cursor-2",
					pageJSON("p1", "Update", "2024-04-20", true),
					pageJSON("p2", "Update", "2024-04-13", true))
			}
			return 200, listJSON(
				pageJSON("p3", "Update 2", "2024-04-06", true),
				pageJSON("p4", "Draft", "2024-04-01", false))
		case "/v1/blocks/p1/children":
			if r.URL.Query().Get("start_cursor") == "" {
				return 200, listPageJSON("b-2", paragraphJSON("b1", "Hello"))
			}
			return 200, listJSON(
				blockJSON("tg", "toggle", true, `{"rich_text":`+richJSON("More")+`}`),
				blockJSON("tb", "table", true, `{"table_width":2,"has_column_header":true,"has_row_header":false}`),
			)
		case "/v1/blocks/tg/children":
			return 200, listJSON(paragraphJSON("b2", "Inside"))
		case "/v1/blocks/tb/children":
			return 200, listJSON(rowJSON("r1", "Time", "Service"), rowJSON("r2", "11:00", "Worship"))
		}
		return 200, listJSON()
	}
	c := api.client(t, Databases{News: "db-news"})

	entries, err := c.Entries(context.Background(), content.KindNews)
	require.NoError(t, err)

	var slugs []string
	for _, e := range entries {
		slugs = append(slugs, e.Slug)
	}
	assert.Equal(t, []string{"update", "update-2", "update-2-2"}, slugs, "both result pages merged, draft dropped")
	assert.Equal(t, 3, api.count("/v1/databases/db-news/query"), "rate limited once, then two pages")
	assert.Equal(t, 2, api.count("/v1/blocks/p1/children"), "children are paginated")

	require.NotEmpty(t, api.bodies)
	assert.Contains(t, api.bodies[0], `"property":"Published"`)
	assert.Contains(t, api.bodies[0], `"equals":true`)

	bs := entries[0].Blocks
	require.Len(t, bs, 3)
	assert.Equal(t, blocks.Paragraph, bs[0].Type)
	assert.Equal(t, "Hello", blocks.PlainText(bs[0].RichText))

	assert.Equal(t, blocks.Toggle, bs[1].Type)
	require.Len(t, bs[1].Children, 1)
	assert.Equal(t, "Inside", blocks.PlainText(bs[1].Children[0].RichText))

	table := bs[2]
	assert.Equal(t, blocks.Table, table.Type)
	assert.True(t, table.ColumnHeader)
	assert.Empty(t, table.Children, "rows are folded into the table")
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Time", blocks.PlainText(table.Rows[0][0]))
	assert.Equal(t, "Worship", blocks.PlainText(table.Rows[1][1]))

	assert.Empty(t, entries[1].Blocks)
}

func TestClientRetriesServerErrors(t *testing.T) {
	api := &fakeAPI{}
	api.serve = func(r *http.Request, _ string, call int) (int, string) {
		if call == 1 {
			return http.StatusServiceUnavailable, apiError(503, "service_unavailable")
		}
		return 200, listJSON(fmt.Sprintf(`{"object":"page","id":"s1","properties":{"Name":{"id":"title","type":"title","title":%s}}}`, richJSON("Ann Lee")))
	}
	c := api.client(t, Databases{Staff: "db-staff"})

	staff, err := c.Staff(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "Ann Lee", staff[0].Name)
	assert.Equal(t, 2, api.count("/v1/databases/db-staff/query"))
}

func TestClientDoesNotRetryBadRequest(t *testing.T) {
	api := &fakeAPI{}
	api.serve = func(*http.Request, string, int) (int, string) {
		return http.StatusBadRequest, apiError(400, "validation_error")
	}
	c := api.client(t, Databases{Schedule: "db-schedule"})

	_, err := c.Events(context.Background())
	require.Error(t, err)
	var apiErr *notionapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, 1, api.count("/v1/databases/db-schedule/query"))
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient("secret_test", Databases{})
	_, err := c.Entries(context.Background(), content.KindSermon)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Events(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Staff(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
