// Package chapel is a church website served from a local mirror of Notion
// databases: sermons, bulletins, news, the event calendar and the staff
// directory. Content is synced into SQLite on a schedule, cached in memory
// and rendered server-side with Echo and templ components.
//
// Pages are provided through the ViewFuncs struct; DefaultViews returns
// the built-in templates.
package chapel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/chapel/analytics"
	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/notion"
	"github.com/eringen/chapel/siteinfo"
)

// App is the central chapel application. It wires together the store,
// cache, syncer, handlers, middleware, and templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *ContentCache
	Syncer *Syncer // nil when Notion is not configured
	Views  ViewFuncs
	Log    *zap.Logger
	Site   *SiteInfo

	source         notion.Source
	now            func() time.Time
	loc            *time.Location
	siteFixed      bool
	siteWatcher    *siteinfo.Watcher
	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	customRoutes   []func(*App)
	stops          []func()
	bgCtx          context.Context
	bgCancel       context.CancelFunc
	bg             sync.WaitGroup
	opened         bool
	ready          bool
}

// New creates a chapel App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
		Site:   &SiteInfo{info: siteinfo.Defaults()},
		now:    time.Now,
	}
	a.bgCtx, a.bgCancel = context.WithCancel(context.Background())
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Open prepares everything needed to sync: logger, time zone, site file,
// store, cache and the Notion source. Setup calls it; the sync command
// uses it alone.
func (a *App) Open() error {
	if a.opened {
		return nil
	}
	if a.Log == nil {
		log, err := NewLogger(a.Config.Dev)
		if err != nil {
			return fmt.Errorf("chapel: init logger: %w", err)
		}
		a.Log = log
	}

	loc, err := a.Config.Location()
	if err != nil {
		return err
	}
	a.loc = loc

	if !a.siteFixed {
		if err := a.loadSiteFile(); err != nil {
			return err
		}
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("chapel: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewContentCache(a.Store, a.Config.CacheTTL)

	if a.source == nil && a.Config.NotionToken != "" {
		a.source = notion.NewClient(a.Config.NotionToken, a.Config.Databases(),
			notion.WithLogger(a.Log.Named("notion")))
	}
	if a.source != nil {
		mirror := NewImageMirror(a.Store, a.Config.StaticDir, a.Log.Named("images"))
		a.Syncer = NewSyncer(a.source, a.Store, a.Cache, mirror, a.Log.Named("sync"))
		a.Syncer.now = a.now
	} else {
		a.Log.Warn("NOTION_TOKEN not set, serving previously mirrored content only")
	}
	a.opened = true
	return nil
}

func (a *App) loadSiteFile() error {
	path := a.Config.SiteFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		a.Log.Info("no site file, using defaults", zap.String("path", path))
		return nil
	}
	info, err := siteinfo.Load(path)
	if err != nil {
		return fmt.Errorf("chapel: %w", err)
	}
	a.Site.Set(info)

	w, err := siteinfo.Watch(path, func(info siteinfo.Info, err error) {
		if err != nil {
			a.Log.Warn("site file not reloaded", zap.Error(err))
			return
		}
		a.Site.Set(info)
		a.Log.Info("site file reloaded", zap.String("path", path))
	})
	if err != nil {
		a.Log.Warn("site file changes will not be picked up", zap.Error(err))
		return nil
	}
	a.siteWatcher = w
	return nil
}

// siteInfo is the site file contents with the SITE_NAME override applied.
func (a *App) siteInfo() siteinfo.Info {
	info := a.Site.Get()
	if a.Config.Name != "" {
		info.Name = a.Config.Name
	}
	if info.Name == "" {
		info.Name = siteinfo.Defaults().Name
	}
	return info
}

// Setup opens the app and registers middleware and routes. After Setup the
// Echo instance can serve requests.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("chapel: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("chapel: SessionSecret is required")
	}
	if err := a.Open(); err != nil {
		return err
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath, a.Log.Named("analytics"))
		if err != nil {
			return fmt.Errorf("chapel: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("chapel: init analytics salt: %w", err)
		}
		a.stops = append(a.stops, analyticsStore.StartCleanupScheduler(365, 24*time.Hour))
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets the app up, starts the sync scheduler and serves until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}
	if a.Syncer != nil && a.Config.SyncInterval > 0 {
		a.stops = append(a.stops, a.Syncer.Start(ctx, a.Config.SyncInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Built-in assets are served under /public/ ahead of the static dir.
	assets, _ := fs.Sub(Assets, "assets")
	assetHandler := echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets))))
	e.GET("/public/chapel.css", assetHandler)
	e.GET("/public/analytics.js", assetHandler)

	e.Static("/public", a.Config.StaticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	for _, kind := range content.Kinds {
		e.GET(kind.Path(), a.listHandler(kind))
		e.GET(kind.Path()+":slug/", a.entryHandler(kind))
	}
	e.GET("/schedule/", a.handleSchedule)
	e.GET("/schedule.ics", a.handleICS)
	e.GET("/staff/", a.handleStaff)
	e.GET("/about/", a.handleAbout)

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/sync/", a.handleAdminSync)

	if a.analyticsStore != nil {
		h := analytics.NewHandler(a.analyticsStore, a.Log.Named("analytics"))
		h.RegisterRoutes(e, e.Group(""), requireAdmin)
		a.stops = append(a.stops, h.Stop)
	}
}

// background runs fn on its own goroutine. Close cancels the context
// passed to fn and waits for it to return before closing the store.
func (a *App) background(fn func(ctx context.Context)) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(a.bgCtx)
	}()
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	a.bgCancel()
	a.bg.Wait()
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	if a.siteWatcher != nil {
		a.siteWatcher.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.analyticsStore != nil {
		errs = append(errs, a.analyticsStore.Close())
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}
