package chapel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/notion"
	"github.com/eringen/chapel/schedule"
)

// ErrSyncInProgress is returned by Run while another run is active.
var ErrSyncInProgress = errors.New("chapel: sync already in progress")

// Dataset names used in sync run counts besides the entry kinds.
const (
	datasetEvents = "events"
	datasetStaff  = "staff"
)

// Syncer mirrors the Notion databases into the Store.
type Syncer struct {
	source  notion.Source
	store   *Store
	cache   *ContentCache
	images  *ImageMirror
	log     *zap.Logger
	now     func() time.Time
	running atomic.Bool
}

// NewSyncer wires a Syncer. images may be nil to keep remote image URLs.
func NewSyncer(src notion.Source, store *Store, cache *ContentCache, images *ImageMirror, log *zap.Logger) *Syncer {
	return &Syncer{
		source: src,
		store:  store,
		cache:  cache,
		images: images,
		log:    log,
		now:    time.Now,
	}
}

// Running reports whether a run is in progress.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

type dataset struct {
	name    string
	kind    content.Kind
	entries []content.Entry
	events  []schedule.Event
	staff   []content.Staff
	images  []string
	err     error
}

// Run fetches every dataset concurrently and replaces the mirrored copy of
// each one that was fetched successfully. A failing dataset keeps its
// previous copy and does not stop the others; the first failure is
// recorded on the run and returned. Datasets without a configured
// database are skipped.
func (s *Syncer) Run(ctx context.Context) (content.SyncRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return content.SyncRun{}, ErrSyncInProgress
	}
	defer s.running.Store(false)

	run := content.SyncRun{
		ID:        uuid.NewString(),
		StartedAt: s.now().UTC(),
		Counts:    make(map[string]int),
	}
	if err := s.store.StartSyncRun(run); err != nil {
		return run, fmt.Errorf("chapel: start sync run: %w", err)
	}
	s.log.Info("sync started", zap.String("run", run.ID))

	results := s.fetch(ctx)

	// Writes are sequential; SQLite has a single writer anyway.
	var firstErr error
	complete := true
	keep := make(map[string]bool)
	for _, d := range results {
		if errors.Is(d.err, notion.ErrNotConfigured) {
			complete = false
			continue
		}
		err := d.err
		if err == nil {
			err = s.write(ctx, d)
		}
		if err != nil {
			complete = false
			s.log.Error("sync dataset failed", zap.String("run", run.ID), zap.String("dataset", d.name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", d.name, err)
			}
			continue
		}
		run.Counts[d.name] = len(d.entries) + len(d.events) + len(d.staff)
		for _, id := range d.images {
			keep[id] = true
		}
	}

	// Only prune when every dataset was replaced; otherwise older rows may
	// still point at images that were not seen this time.
	if complete && s.images != nil {
		if n, err := s.images.Prune(keep); err != nil {
			s.log.Warn("pruning mirrored images", zap.Error(err))
		} else if n > 0 {
			s.log.Info("pruned mirrored images", zap.Int("removed", n))
		}
	}

	s.cache.Invalidate()

	run.FinishedAt = s.now().UTC()
	if firstErr != nil {
		run.Err = firstErr.Error()
	}
	if err := s.store.FinishSyncRun(run); err != nil {
		s.log.Error("recording sync run", zap.String("run", run.ID), zap.Error(err))
	}
	s.log.Info("sync finished",
		zap.String("run", run.ID),
		zap.Duration("took", run.Duration()),
		zap.Any("counts", run.Counts),
		zap.Bool("ok", firstErr == nil),
	)
	if firstErr != nil {
		return run, fmt.Errorf("chapel: sync: %w", firstErr)
	}
	return run, nil
}

func (s *Syncer) fetch(ctx context.Context) []dataset {
	results := make([]dataset, len(content.Kinds)+2)
	var g errgroup.Group
	for i, kind := range content.Kinds {
		g.Go(func() error {
			d := dataset{name: string(kind), kind: kind}
			d.entries, d.err = s.source.Entries(ctx, kind)
			if d.err == nil {
				d.images = s.mirrorEntries(ctx, d.entries)
			}
			results[i] = d
			return nil
		})
	}
	n := len(content.Kinds)
	g.Go(func() error {
		d := dataset{name: datasetEvents}
		d.events, d.err = s.source.Events(ctx)
		results[n] = d
		return nil
	})
	g.Go(func() error {
		d := dataset{name: datasetStaff}
		d.staff, d.err = s.source.Staff(ctx)
		if d.err == nil {
			d.images = s.mirrorStaff(ctx, d.staff)
		}
		results[n+1] = d
		return nil
	})
	_ = g.Wait()
	return results
}

func (s *Syncer) write(ctx context.Context, d dataset) error {
	switch d.name {
	case datasetEvents:
		return s.store.ReplaceEvents(ctx, d.events)
	case datasetStaff:
		return s.store.ReplaceStaff(ctx, d.staff)
	default:
		return s.store.ReplaceEntries(ctx, d.kind, d.entries)
	}
}

// mirrorEntries rewrites cover and image block URLs to local copies and
// returns the image IDs it touched.
func (s *Syncer) mirrorEntries(ctx context.Context, entries []content.Entry) []string {
	var ids []string
	for i := range entries {
		e := &entries[i]
		if e.Cover != "" {
			id := e.ID + "-cover"
			e.Cover = s.mirror(ctx, id, e.Cover)
			ids = append(ids, id)
		}
		blocks.Walk(e.Blocks, func(b *blocks.Block) {
			if b.Type != blocks.Image || b.URL == "" {
				return
			}
			b.URL = s.mirror(ctx, b.ID, b.URL)
			ids = append(ids, b.ID)
		})
	}
	return ids
}

func (s *Syncer) mirrorStaff(ctx context.Context, staff []content.Staff) []string {
	var ids []string
	for i := range staff {
		if staff[i].Photo == "" {
			continue
		}
		id := staff[i].ID + "-photo"
		staff[i].Photo = s.mirror(ctx, id, staff[i].Photo)
		ids = append(ids, id)
	}
	return ids
}

func (s *Syncer) mirror(ctx context.Context, id, src string) string {
	if s.images == nil {
		return src
	}
	local, err := s.images.Mirror(ctx, id, src)
	if err != nil {
		s.log.Warn("keeping remote image", zap.String("id", id), zap.Error(err))
	}
	return local
}

// Start runs a sync immediately and then every interval until ctx is done
// or the returned stop function is called.
func (s *Syncer) Start(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := s.Run(ctx); errors.Is(err, ErrSyncInProgress) {
				s.log.Debug("scheduled sync skipped, previous run still active")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
