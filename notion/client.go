package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jomei/notionapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
)

const (
	pageSize      = 100
	childFetchers = 3
)

// Client reads the configured databases through the Notion API. Requests
// are rate limited to Notion's published average of three per second and
// retried on 429 and 5xx responses.
type Client struct {
	api      *notionapi.Client
	hc       *http.Client
	dbs      Databases
	mapping  Mapping
	limiter  *rate.Limiter
	log      *zap.Logger
	attempts uint
	delay    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMapping overrides the property names.
func WithMapping(m Mapping) ClientOption {
	return func(c *Client) { c.mapping = m }
}

// WithLogger sets the logger used for skipped pages and retries.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithRateLimit overrides the request rate.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient returns a Client authenticated with an integration token.
func NewClient(token string, dbs Databases, opts ...ClientOption) *Client {
	c := &Client{
		dbs:      dbs,
		mapping:  DefaultMapping(),
		limiter:  rate.NewLimiter(rate.Limit(3), 3),
		log:      zap.NewNop(),
		attempts: 4,
		delay:    500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	var apiOpts []notionapi.ClientOption
	if c.hc != nil {
		apiOpts = append(apiOpts, notionapi.WithHTTPClient(c.hc))
	}
	c.api = notionapi.NewClient(notionapi.Token(token), apiOpts...)
	return c
}

// Entries returns the published pages of kind's database with their body
// blocks, newest first. Unpublished pages are filtered by the query and
// never returned.
func (c *Client) Entries(ctx context.Context, kind content.Kind) ([]content.Entry, error) {
	id := c.dbs.For(kind)
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, kind)
	}
	req := &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{{Property: c.mapping.Date, Direction: notionapi.SortOrderDESC}},
	}
	if c.mapping.Published != "" {
		req.Filter = &notionapi.PropertyFilter{
			Property: c.mapping.Published,
			Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
		}
	}
	pages, err := c.query(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("notion: query %s: %w", kind, err)
	}

	entries := make([]content.Entry, 0, len(pages))
	for _, p := range pages {
		e, err := c.mapping.Entry(kind, p)
		if err != nil {
			c.log.Warn("skipping page", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		if !e.Published {
			continue
		}
		entries = append(entries, e)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childFetchers)
	for i := range entries {
		g.Go(func() error {
			bs, err := c.Blocks(gctx, entries[i].ID)
			if err != nil {
				return fmt.Errorf("notion: blocks of %s: %w", entries[i].ID, err)
			}
			entries[i].Blocks = bs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	content.AssignSlugs(entries)
	return entries, nil
}

// Events returns every event of the schedule database.
func (c *Client) Events(ctx context.Context) ([]schedule.Event, error) {
	if c.dbs.Schedule == "" {
		return nil, fmt.Errorf("%w: schedule", ErrNotConfigured)
	}
	pages, err := c.query(ctx, c.dbs.Schedule, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{{Property: c.mapping.Date, Direction: notionapi.SortOrderASC}},
	})
	if err != nil {
		return nil, fmt.Errorf("notion: query schedule: %w", err)
	}
	events := make([]schedule.Event, 0, len(pages))
	for _, p := range pages {
		e, err := c.mapping.Event(p)
		if err != nil {
			c.log.Warn("skipping event", zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Staff returns every member of the staff database.
func (c *Client) Staff(ctx context.Context) ([]content.Staff, error) {
	if c.dbs.Staff == "" {
		return nil, fmt.Errorf("%w: staff", ErrNotConfigured)
	}
	pages, err := c.query(ctx, c.dbs.Staff, &notionapi.DatabaseQueryRequest{})
	if err != nil {
		return nil, fmt.Errorf("notion: query staff: %w", err)
	}
	staff := make([]content.Staff, 0, len(pages))
	for _, p := range pages {
		s, err := c.mapping.Staff(p)
		if err != nil {
			c.log.Warn("skipping staff member", zap.Error(err))
			continue
		}
		staff = append(staff, s)
	}
	return staff, nil
}

// Blocks returns the content tree of a page or block. Children of nested
// blocks are fetched concurrently.
func (c *Client) Blocks(ctx context.Context, id string) ([]blocks.Block, error) {
	raw, err := c.children(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]blocks.Block, len(raw))
	keep := make([]bool, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childFetchers)
	for i, nb := range raw {
		b, ok := Block(nb)
		if !ok {
			continue
		}
		out[i], keep[i] = b, true
		if !nb.GetHasChildren() {
			continue
		}
		g.Go(func() error {
			kids, err := c.Blocks(gctx, b.ID)
			if err != nil {
				return err
			}
			out[i].Children = kids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := out[:0]
	for i := range out {
		if !keep[i] {
			continue
		}
		foldTable(&out[i])
		tree = append(tree, out[i])
	}
	return tree, nil
}

func (c *Client) query(ctx context.Context, id string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req.PageSize = pageSize
	for {
		resp, err := retryCall(ctx, c, func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
			return c.api.Database.Query(ctx, notionapi.DatabaseID(id), req)
		})
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

func (c *Client) children(ctx context.Context, id string) ([]notionapi.Block, error) {
	var out []notionapi.Block
	pg := &notionapi.Pagination{PageSize: pageSize}
	for {
		resp, err := retryCall(ctx, c, func(ctx context.Context) (*notionapi.GetChildrenResponse, error) {
			return c.api.Block.GetChildren(ctx, notionapi.BlockID(id), pg)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		pg.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

func retryCall[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoWithData(func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, retry.Unrecoverable(err)
		}
		v, err := fn(ctx)
		if err != nil && !Retryable(err) {
			return zero, retry.Unrecoverable(err)
		}
		return v, err
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.log.Debug("retrying notion request", zap.Uint("attempt", attempt), zap.Error(err))
		}),
	)
}

// Retryable reports whether err is a rate limit or server error from the
// Notion API.
func Retryable(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	return false
}
