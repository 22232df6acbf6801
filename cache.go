package chapel

import (
	"database/sql"
	"slices"
	"sync"
	"time"

	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = sql.ErrNoRows

// Snapshot is everything the public pages read, loaded from the store at
// once so a page never mixes two syncs.
type Snapshot struct {
	Entries map[content.Kind][]content.Entry
	Events  []schedule.Event
	Staff   []content.Staff
}

// ContentCache is an in-memory copy of the mirrored content with TTL.
type ContentCache struct {
	mu      sync.RWMutex
	snap    *Snapshot
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewContentCache creates a ContentCache backed by the given Store.
func NewContentCache(s *Store, ttl time.Duration) *ContentCache {
	return &ContentCache{store: s, ttl: ttl}
}

func (c *ContentCache) valid() bool {
	return c.snap != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *ContentCache) load() error {
	if c.valid() {
		return nil
	}
	snap := &Snapshot{Entries: make(map[content.Kind][]content.Entry, len(content.Kinds))}
	for _, k := range content.Kinds {
		entries, err := c.store.ListEntries(k)
		if err != nil {
			return err
		}
		snap.Entries[k] = slices.DeleteFunc(entries, func(e content.Entry) bool { return !e.Published })
	}
	events, err := c.store.ListEvents()
	if err != nil {
		return err
	}
	staff, err := c.store.ListStaff()
	if err != nil {
		return err
	}
	snap.Events = events
	snap.Staff = staff
	c.snap = snap
	c.fetched = time.Now()
	return nil
}

// Snapshot returns the cached content after ensuring it is fresh. It tries
// a read lock first and only takes the write lock when a reload is needed.
// Callers must not modify the returned slices.
func (c *ContentCache) Snapshot() (*Snapshot, error) {
	c.mu.RLock()
	if c.valid() {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.snap, nil
}

// Entries returns the published entries of kind, newest first.
func (c *ContentCache) Entries(kind content.Kind) ([]content.Entry, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Entries[kind], nil
}

// Entry returns a single entry by slug from the cache.
func (c *ContentCache) Entry(kind content.Kind, slug string) (content.Entry, error) {
	entries, err := c.Entries(kind)
	if err != nil {
		return content.Entry{}, err
	}
	for _, e := range entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return content.Entry{}, ErrNotFound
}

// Events returns every event ordered by start.
func (c *ContentCache) Events() ([]schedule.Event, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Events, nil
}

// Staff returns the staff directory.
func (c *ContentCache) Staff() ([]content.Staff, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Staff, nil
}
