package chapel

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/eringen/chapel/notion"
	"github.com/eringen/chapel/siteinfo"
)

// SiteConfig holds all configuration for a chapel site. Every field can be
// set from the environment; blanks are filled by setDefaults.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // Site name, overrides site.yaml's name when set
	URL         string `env:"SITE_URL"`         // Canonical URL (default "http://localhost:3000")
	Description string `env:"SITE_DESCRIPTION"` // Used for RSS and meta tags

	Addr         string `env:"ADDR"`          // Listen address (default ":3000")
	DatabasePath string `env:"DATABASE_PATH"` // Content mirror (default "data/chapel.db")

	AnalyticsEnabled      bool   `env:"ANALYTICS_ENABLED" envDefault:"true"`
	AnalyticsDatabasePath string `env:"ANALYTICS_DATABASE_PATH"` // default "data/analytics.db"

	AdminPassword string `env:"ADMIN_PASSWORD"`       // Required to serve
	SessionSecret string `env:"ADMIN_SESSION_SECRET"` // Required to serve
	CookieSecure  bool   `env:"COOKIE_SECURE"`

	CacheTTL     time.Duration `env:"CACHE_TTL"`     // default 5m
	SyncInterval time.Duration `env:"SYNC_INTERVAL"` // default 15m; negative disables the scheduler
	Timezone     string        `env:"TIMEZONE"`      // IANA name used for the calendar (default "UTC")
	PageSize     int           `env:"PAGE_SIZE"`     // default 10

	NotionToken string `env:"NOTION_TOKEN"`
	SermonsDB   string `env:"NOTION_SERMONS_DB"`
	BulletinsDB string `env:"NOTION_BULLETINS_DB"`
	NewsDB      string `env:"NOTION_NEWS_DB"`
	ScheduleDB  string `env:"NOTION_SCHEDULE_DB"`
	StaffDB     string `env:"NOTION_STAFF_DB"`

	SiteFile  string `env:"SITE_FILE"`  // default "site.yaml"; a missing file uses built-in defaults
	StaticDir string `env:"STATIC_DIR"` // default "public"
	Dev       bool   `env:"CHAPEL_DEV"`
}

// ParseEnv reads a SiteConfig from the environment.
func ParseEnv() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("chapel: parse env: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/chapel.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = 15 * time.Minute
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.SiteFile == "" {
		c.SiteFile = "site.yaml"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
}

// Databases returns the Notion database IDs.
func (c SiteConfig) Databases() notion.Databases {
	return notion.Databases{
		Sermons:   c.SermonsDB,
		Bulletins: c.BulletinsDB,
		News:      c.NewsDB,
		Schedule:  c.ScheduleDB,
		Staff:     c.StaffDB,
	}
}

// Location loads the configured calendar time zone.
func (c SiteConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("chapel: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets and mirrored images.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithSource replaces the Notion client, mostly for tests.
func WithSource(src notion.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithClock sets the function used for "now" (upcoming events, today's
// cell in the calendar).
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithSiteInfo uses info instead of reading SiteFile.
func WithSiteInfo(info siteinfo.Info) Option {
	return func(a *App) {
		a.Site.Set(info)
		a.siteFixed = true
	}
}
