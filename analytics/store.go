package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as sortable UTC text so range filters and
// strftime buckets agree.
const timeFormat = "2006-01-02 15:04:05"

func ts(t time.Time) string { return t.UTC().Format(timeFormat) }

const topLimit = 10

// Store persists visits in SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewStore opens or creates the analytics database at path.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("analytics: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)
	s := &Store{db: db, log: log, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			screen_size TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			duration_sec INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_path ON visits(visitor_id, path);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_timestamp ON bot_visits(timestamp);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting returns the value for key, or "" when unset.
func (s *Store) GetSetting(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) SaveVisit(v Visit) error {
	_, err := s.db.Exec(`INSERT INTO visits
		(visitor_id, session_id, ip_hash, browser, os, device, path, referrer, screen_size, timestamp, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device, v.Path,
		v.Referrer, v.ScreenSize, ts(v.Timestamp), v.DurationSec)
	return err
}

// UpdateVisitDuration sets the duration on the visitor's latest view of path.
func (s *Store) UpdateVisitDuration(visitorID, path string, durationSec int) error {
	_, err := s.db.Exec(`UPDATE visits SET duration_sec = ? WHERE id = (
		SELECT id FROM visits WHERE visitor_id = ? AND path = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1)`, durationSec, visitorID, path)
	return err
}

func (s *Store) SaveBotVisit(v BotVisit) error {
	_, err := s.db.Exec(`INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?, ?)`, v.BotName, v.IPHash, v.UserAgent, v.Path, ts(v.Timestamp))
	return err
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *Store) dimension(ctx context.Context, query string, args ...any) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DimensionStat{}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) pages(ctx context.Context, table string, from, to time.Time) ([]PageStat, error) {
	dims, err := s.dimension(ctx, `SELECT path, COUNT(*) AS n FROM `+table+`
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY path ORDER BY n DESC, path LIMIT ?`, ts(from), ts(to), topLimit)
	if err != nil {
		return nil, err
	}
	out := make([]PageStat, len(dims))
	for i, d := range dims {
		out[i] = PageStat{Path: d.Name, Views: d.Count}
	}
	return out, nil
}

func (s *Store) series(ctx context.Context, table string, p Period, from, to time.Time) ([]SeriesPoint, error) {
	dims, err := s.dimension(ctx, `SELECT strftime(?, timestamp) AS bucket, COUNT(*) FROM `+table+`
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY bucket ORDER BY bucket`, p.bucket(), ts(from), ts(to))
	if err != nil {
		return nil, err
	}
	out := make([]SeriesPoint, len(dims))
	for i, d := range dims {
		out[i] = SeriesPoint{Label: d.Name, Views: d.Count}
	}
	return out, nil
}

// GetStats aggregates human visits in [from, to). The queries run
// concurrently.
func (s *Store) GetStats(ctx context.Context, p Period, from, to time.Time) (*Stats, error) {
	st := &Stats{Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02")}
	span := []any{ts(from), ts(to)}
	where := ` FROM visits WHERE timestamp >= ? AND timestamp < ?`
	breakdown := func(col string) string {
		return `SELECT ` + col + `, COUNT(*) AS n` + where + ` GROUP BY ` + col + ` ORDER BY n DESC, ` + col + ` LIMIT 10`
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalViews, err = s.count(ctx, `SELECT COUNT(*)`+where, span...)
		return wrap("count views", err)
	})
	g.Go(func() (err error) {
		st.UniqueVisitors, err = s.count(ctx, `SELECT COUNT(DISTINCT visitor_id)`+where, span...)
		return wrap("count visitors", err)
	})
	g.Go(func() error {
		var avg sql.NullFloat64
		err := s.db.QueryRowContext(ctx, `SELECT AVG(duration_sec)`+where+` AND duration_sec > 0`, span...).Scan(&avg)
		if avg.Valid {
			st.AvgDuration = int(avg.Float64)
		}
		return wrap("avg duration", err)
	})
	g.Go(func() (err error) {
		st.TopPages, err = s.pages(ctx, "visits", from, to)
		return wrap("top pages", err)
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT path, timestamp, browser`+where+`
			ORDER BY timestamp DESC, id DESC LIMIT ?`, ts(from), ts(to), topLimit)
		if err != nil {
			return wrap("latest pages", err)
		}
		defer rows.Close()
		st.LatestPages = []LatestPageVisit{}
		for rows.Next() {
			var l LatestPageVisit
			if err := rows.Scan(&l.Path, &l.Timestamp, &l.Browser); err != nil {
				return wrap("latest pages", err)
			}
			st.LatestPages = append(st.LatestPages, l)
		}
		return wrap("latest pages", rows.Err())
	})
	g.Go(func() (err error) {
		st.Browsers, err = s.dimension(ctx, breakdown("browser"), span...)
		return wrap("browsers", err)
	})
	g.Go(func() (err error) {
		st.OS, err = s.dimension(ctx, breakdown("os"), span...)
		return wrap("os", err)
	})
	g.Go(func() (err error) {
		st.Devices, err = s.dimension(ctx, breakdown("device"), span...)
		return wrap("devices", err)
	})
	g.Go(func() (err error) {
		st.Referrers, err = s.dimension(ctx, breakdown("referrer"), span...)
		return wrap("referrers", err)
	})
	g.Go(func() (err error) {
		st.Series, err = s.series(ctx, "visits", p, from, to)
		return wrap("series", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if p.Hourly() {
		st.Series = fillHours(st.Series, from)
	}
	return st, nil
}

// GetBotStats aggregates crawler visits in [from, to).
func (s *Store) GetBotStats(ctx context.Context, p Period, from, to time.Time) (*BotStats, error) {
	st := &BotStats{Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02")}
	var err error
	if st.TotalVisits, err = s.count(ctx, `SELECT COUNT(*) FROM bot_visits
		WHERE timestamp >= ? AND timestamp < ?`, ts(from), ts(to)); err != nil {
		return nil, wrap("count bot visits", err)
	}
	if st.TopBots, err = s.dimension(ctx, `SELECT bot_name, COUNT(*) AS n FROM bot_visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY bot_name ORDER BY n DESC, bot_name LIMIT ?`, ts(from), ts(to), topLimit); err != nil {
		return nil, wrap("top bots", err)
	}
	if st.TopPages, err = s.pages(ctx, "bot_visits", from, to); err != nil {
		return nil, wrap("top bot pages", err)
	}
	if st.Series, err = s.series(ctx, "bot_visits", p, from, to); err != nil {
		return nil, wrap("bot series", err)
	}
	if p.Hourly() {
		st.Series = fillHours(st.Series, from)
	}
	return st, nil
}

// RealtimeVisitors counts distinct visitors in the last five minutes.
func (s *Store) RealtimeVisitors(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE timestamp >= ?`,
		ts(s.now().Add(-5*time.Minute)))
}

// Cleanup deletes visits older than retentionDays.
func (s *Store) Cleanup(retentionDays int) error {
	cutoff := ts(s.now().AddDate(0, 0, -retentionDays))
	if _, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff); err != nil {
		return wrap("cleanup visits", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bot_visits WHERE timestamp < ?`, cutoff); err != nil {
		return wrap("cleanup bot visits", err)
	}
	return nil
}

// StartCleanupScheduler runs Cleanup every interval until the returned
// stop function is called.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Cleanup(retentionDays); err != nil {
					s.log.Error("analytics cleanup failed", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("analytics: %s: %w", op, err)
}
