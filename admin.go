package chapel

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/chapel/content"
	"github.com/eringen/chapel/views"
)

const recentRuns = 10

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return a.renderAdminLogin(c, http.StatusOK, false)
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) renderAdminLogin(c echo.Context, code int, failed bool) error {
	return RenderStatus(c, code, a.Views.AdminLogin(views.AdminLoginPage{
		Layout:    a.layout("admin", views.PageMeta{Title: "Admin"}),
		ShowError: failed,
		CSRF:      CsrfToken(c),
	}))
}

// handleAdminLogin checks the password. Only failures count against the
// per-IP limit; a success clears it.
func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		a.Log.Warn("admin login rate limited", zap.String("ip", ip))
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		return a.renderAdminLogin(c, http.StatusUnauthorized, true)
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminSync starts a sync in the background and returns to the
// dashboard, which shows the run once it finishes.
func (a *App) handleAdminSync(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if a.Syncer == nil {
		return redirectWithMessage(c, "Notion is not configured. Set NOTION_TOKEN and the database IDs.")
	}
	if a.Syncer.Running() {
		return redirectWithMessage(c, "A sync is already running.")
	}
	a.background(func(ctx context.Context) {
		_, err := a.Syncer.Run(ctx)
		if err != nil && !errors.Is(err, ErrSyncInProgress) && !errors.Is(err, context.Canceled) {
			a.Log.Error("manual sync failed", zap.Error(err))
		}
	})
	return redirectWithMessage(c, "Sync started.")
}

func redirectWithMessage(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	runs, err := a.Store.ListSyncRuns(recentRuns)
	if err != nil {
		return err
	}

	counts := make([]views.DatasetCount, 0, len(content.Kinds)+2)
	for _, kind := range content.Kinds {
		counts = append(counts, views.DatasetCount{Name: kind.Title(), Count: len(snap.Entries[kind])})
	}
	counts = append(counts,
		views.DatasetCount{Name: "Events", Count: len(snap.Events)},
		views.DatasetCount{Name: "Staff", Count: len(snap.Staff)},
	)

	return Render(c, a.Views.AdminDashboard(views.AdminDashboardPage{
		Layout:  a.layout("admin", views.PageMeta{Title: "Admin"}),
		CSRF:    CsrfToken(c),
		Message: msg,
		Counts:  counts,
		Runs:    runs,
		Syncing: a.Syncer != nil && a.Syncer.Running(),
	}))
}
