package chapel

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/chapel/blocks"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/schedule"
)

// Store is the local SQLite mirror of the Notion databases. Handlers read
// from it (through ContentCache); only the Syncer writes.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a sync rewrites a dataset.
	db, err := sql.Open("sqlite", sqliteDSN(path,
		"journal_mode(WAL)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
		"cache_size(-8000)",
		"mmap_size(268435456)",
	))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN appends pragmas to path so that every pooled connection runs
// them when it opens.
func sqliteDSN(path string, pragmas ...string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	return path + "?" + strings.Join(q, "&")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS entries (
    kind TEXT NOT NULL,
    slug TEXT NOT NULL,
    id TEXT NOT NULL,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    tags TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    preacher TEXT NOT NULL DEFAULT '',
    scripture TEXT NOT NULL DEFAULT '',
    series TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    cover TEXT NOT NULL DEFAULT '',
    attachments TEXT NOT NULL DEFAULT '[]',
    blocks TEXT NOT NULL DEFAULT '[]',
    published INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (kind, slug)
);
CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(kind, date);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    starts_at TEXT NOT NULL,
    ends_at TEXT NOT NULL,
    all_day INTEGER NOT NULL DEFAULT 0,
    location TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS staff (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    photo TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS images (
    notion_id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    filename TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT '',
    counts TEXT NOT NULL DEFAULT '{}',
    error TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

const entryColumns = `kind, slug, id, title, date, tags, summary, preacher, scripture, series, video_url, cover, attachments, blocks, published, updated_at`

// ReplaceEntries swaps every entry of kind for entries in one transaction.
func (s *Store) ReplaceEntries(ctx context.Context, kind content.Kind, entries []content.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE kind = ?`, string(kind)); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		attachments, err := json.Marshal(e.Attachments)
		if err != nil {
			return fmt.Errorf("encode attachments of %s: %w", e.Slug, err)
		}
		body, err := json.Marshal(e.Blocks)
		if err != nil {
			return fmt.Errorf("encode blocks of %s: %w", e.Slug, err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(kind), e.Slug, e.ID, e.Title, formatTime(e.Date), FormatTags(e.Tags),
			e.Summary, e.Preacher, e.Scripture, e.Series, e.VideoURL, e.Cover,
			string(attachments), string(body), boolInt(e.Published), formatTime(e.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", kind, e.Slug, err)
		}
	}
	return tx.Commit()
}

// ListEntries returns the entries of kind, newest first.
func (s *Store) ListEntries(kind content.Kind) ([]content.Entry, error) {
	rows, err := s.db.Query(`SELECT `+entryColumns+` FROM entries WHERE kind = ? ORDER BY date DESC, title`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []content.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry returns one entry. A missing entry yields ErrNotFound.
func (s *Store) GetEntry(kind content.Kind, slug string) (content.Entry, error) {
	row := s.db.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE kind = ? AND slug = ?`, string(kind), slug)
	return scanEntry(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (content.Entry, error) {
	var e content.Entry
	var kind, date, tags, updated, attachments, body string
	var published int
	if err := sc.Scan(&kind, &e.Slug, &e.ID, &e.Title, &date, &tags, &e.Summary, &e.Preacher,
		&e.Scripture, &e.Series, &e.VideoURL, &e.Cover, &attachments, &body, &published, &updated); err != nil {
		return content.Entry{}, err
	}
	e.Kind = content.Kind(kind)
	e.Date = parseTime(date)
	e.UpdatedAt = parseTime(updated)
	e.Tags = ParseTags(tags)
	e.Published = published == 1
	if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
		return content.Entry{}, fmt.Errorf("decode attachments of %s: %w", e.Slug, err)
	}
	var bs []blocks.Block
	if err := json.Unmarshal([]byte(body), &bs); err != nil {
		return content.Entry{}, fmt.Errorf("decode blocks of %s: %w", e.Slug, err)
	}
	e.Blocks = bs
	return e, nil
}

// ReplaceEvents swaps the whole schedule in one transaction.
func (s *Store) ReplaceEvents(ctx context.Context, events []schedule.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return err
	}
	for _, e := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO events (id, title, starts_at, ends_at, all_day, location, category, description, url) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), boolInt(e.AllDay),
			e.Location, e.Category, e.Description, e.URL,
		); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ListEvents returns every event ordered by start.
func (s *Store) ListEvents() ([]schedule.Event, error) {
	rows, err := s.db.Query(`SELECT id, title, starts_at, ends_at, all_day, location, category, description, url FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []schedule.Event
	for rows.Next() {
		var e schedule.Event
		var start, end string
		var allDay int
		if err := rows.Scan(&e.ID, &e.Title, &start, &end, &allDay, &e.Location, &e.Category, &e.Description, &e.URL); err != nil {
			return nil, err
		}
		e.Start = parseTime(start)
		e.End = parseTime(end)
		e.AllDay = allDay == 1
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Stored offsets differ between events, so text order is not time order.
	schedule.Sort(events, time.UTC)
	return events, nil
}

// ReplaceStaff swaps the staff directory in one transaction.
func (s *Store) ReplaceStaff(ctx context.Context, staff []content.Staff) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staff`); err != nil {
		return err
	}
	for _, m := range staff {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO staff (id, name, role, department, email, phone, photo, bio, sort_order) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, m.Role, m.Department, m.Email, m.Phone, m.Photo, m.Bio, m.Order,
		); err != nil {
			return fmt.Errorf("insert staff %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListStaff returns the staff directory ordered by sort order, then name.
func (s *Store) ListStaff() ([]content.Staff, error) {
	rows, err := s.db.Query(`SELECT id, name, role, department, email, phone, photo, bio, sort_order FROM staff ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []content.Staff
	for rows.Next() {
		var m content.Staff
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Department, &m.Email, &m.Phone, &m.Photo, &m.Bio, &m.Order); err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

// MirroredImage is a Notion-hosted image copied into the static directory.
type MirroredImage struct {
	NotionID  string
	Source    string // source URL without its signed query string
	Filename  string
	Width     int
	Height    int
	Size      int
	FetchedAt time.Time
}

// SaveImage upserts image metadata.
func (s *Store) SaveImage(img MirroredImage) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO images (notion_id, source, filename, width, height, size, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.NotionID, img.Source, img.Filename, img.Width, img.Height, img.Size, formatTime(img.FetchedAt))
	return err
}

// LookupImage returns the mirrored image for a Notion ID, or ErrNotFound.
func (s *Store) LookupImage(notionID string) (MirroredImage, error) {
	var img MirroredImage
	var fetched string
	err := s.db.QueryRow(`SELECT notion_id, source, filename, width, height, size, fetched_at FROM images WHERE notion_id = ?`, notionID).
		Scan(&img.NotionID, &img.Source, &img.Filename, &img.Width, &img.Height, &img.Size, &fetched)
	if err != nil {
		return MirroredImage{}, err
	}
	img.FetchedAt = parseTime(fetched)
	return img, nil
}

// ListImages returns every mirrored image, newest first.
func (s *Store) ListImages() ([]MirroredImage, error) {
	rows, err := s.db.Query(`SELECT notion_id, source, filename, width, height, size, fetched_at FROM images ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []MirroredImage
	for rows.Next() {
		var img MirroredImage
		var fetched string
		if err := rows.Scan(&img.NotionID, &img.Source, &img.Filename, &img.Width, &img.Height, &img.Size, &fetched); err != nil {
			return nil, err
		}
		img.FetchedAt = parseTime(fetched)
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes image metadata.
func (s *Store) DeleteImage(notionID string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE notion_id = ?`, notionID)
	return err
}

// StartSyncRun records the start of a sync run.
func (s *Store) StartSyncRun(run content.SyncRun) error {
	_, err := s.db.Exec(`INSERT INTO sync_runs (id, started_at) VALUES (?, ?)`, run.ID, formatTime(run.StartedAt))
	return err
}

// FinishSyncRun stores the outcome of a run.
func (s *Store) FinishSyncRun(run content.SyncRun) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE sync_runs SET finished_at = ?, counts = ?, error = ? WHERE id = ?`,
		formatTime(run.FinishedAt), string(counts), run.Err, run.ID)
	return err
}

// ListSyncRuns returns the most recent runs, newest first.
func (s *Store) ListSyncRuns(limit int) ([]content.SyncRun, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, counts, error FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []content.SyncRun
	for rows.Next() {
		var run content.SyncRun
		var started, finished, counts string
		if err := rows.Scan(&run.ID, &started, &finished, &counts, &run.Err); err != nil {
			return nil, err
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
			return nil, fmt.Errorf("decode counts of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FormatTags stores tags normalized and comma-delimited with leading and
// trailing commas (",easter,youth,") so a tag can be matched with instr.
func FormatTags(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := content.NormalizeTag(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	return "," + strings.Join(normalized, ",") + ","
}

// ParseTags splits a comma-delimited tag string (e.g. ",easter,youth,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Entry dates are stored in UTC so text order is time order.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
