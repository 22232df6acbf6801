package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler serves the collect endpoint and the admin stats API.
type Handler struct {
	store   *Store
	log     *zap.Logger
	limiter *keyedLimiter
	now     func() time.Time
}

// NewHandler returns a Handler whose collect endpoint accepts 60 requests
// per IP per minute. Call Stop when done.
func NewHandler(store *Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:   store,
		log:     log,
		limiter: newKeyedLimiter(60, time.Minute),
		now:     time.Now,
	}
}

// Stop ends the limiter's cleanup goroutine.
func (h *Handler) Stop() { h.limiter.stop() }

// CollectRequest is the beacon body sent by analytics.js.
type CollectRequest struct {
	Path        string `json:"path"`
	Referrer    string `json:"referrer"`
	ScreenSize  string `json:"screen_size"`
	UserAgent   string `json:"user_agent"`
	DurationSec int    `json:"duration_sec"`
}

const (
	maxPathLen       = 2048
	maxReferrerLen   = 2048
	maxScreenSizeLen = 32
	maxUserAgentLen  = 512
	maxDurationSec   = 86400
)

var errInvalidCollect = errors.New("analytics: invalid collect request")

func (r CollectRequest) validate() error {
	switch {
	case r.Path == "" || r.Path[0] != '/' || len(r.Path) > maxPathLen,
		len(r.Referrer) > maxReferrerLen,
		len(r.ScreenSize) > maxScreenSizeLen,
		len(r.UserAgent) > maxUserAgentLen,
		r.DurationSec < 0 || r.DurationSec > maxDurationSec:
		return errInvalidCollect
	}
	return nil
}

// Collect records a page view, or the duration of an earlier one when the
// beacon carries duration_sec.
func (h *Handler) Collect(c echo.Context) error {
	ip := c.RealIP()
	if !h.limiter.allow(ip) {
		return c.NoContent(http.StatusTooManyRequests)
	}
	if c.Request().Header.Get("DNT") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	if err := req.validate(); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}

	ua := req.UserAgent
	if ua == "" {
		ua = c.Request().UserAgent()
	}
	now := h.now().UTC()

	if name := BotName(ua); name != "" {
		err := h.store.SaveBotVisit(BotVisit{
			BotName:   name,
			IPHash:    HashIP(ip),
			UserAgent: ua,
			Path:      req.Path,
			Timestamp: now,
		})
		if err != nil {
			h.log.Error("save bot visit", zap.Error(err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	visitor := VisitorID(ip, ua)
	if req.DurationSec > 0 {
		if err := h.store.UpdateVisitDuration(visitor, req.Path, req.DurationSec); err != nil {
			h.log.Error("update visit duration", zap.Error(err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	browser, os, device := ParseUserAgent(ua)
	err := h.store.SaveVisit(Visit{
		VisitorID:  visitor,
		SessionID:  SessionID(visitor, now),
		IPHash:     HashIP(ip),
		Browser:    browser,
		OS:         os,
		Device:     device,
		Path:       req.Path,
		Referrer:   CleanReferrer(req.Referrer),
		ScreenSize: req.ScreenSize,
		Timestamp:  now,
	})
	if err != nil {
		h.log.Error("save visit", zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// StatsResponse is the body of GET /admin/analytics/api/stats.
type StatsResponse struct {
	Stats    *Stats `json:"stats"`
	Realtime int    `json:"realtime_visitors"`
	Period   Period `json:"period"`
}

// BotStatsResponse is the body of GET /admin/analytics/api/bot-stats.
type BotStatsResponse struct {
	Stats  *BotStats `json:"stats"`
	Period Period    `json:"period"`
}

// GetStats returns visitor statistics for ?period= as JSON.
func (h *Handler) GetStats(c echo.Context) error {
	p := ParsePeriod(c.QueryParam("period"))
	from, to := p.Range(h.now())
	ctx := c.Request().Context()

	stats, err := h.store.GetStats(ctx, p, from, to)
	if err != nil {
		h.log.Error("get stats", zap.String("period", p.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	realtime, err := h.store.RealtimeVisitors(ctx)
	if err != nil {
		h.log.Warn("realtime visitors", zap.Error(err))
	}
	return c.JSON(http.StatusOK, StatsResponse{Stats: stats, Realtime: realtime, Period: p})
}

// GetBotStats returns crawler statistics for ?period= as JSON.
func (h *Handler) GetBotStats(c echo.Context) error {
	p := ParsePeriod(c.QueryParam("period"))
	from, to := p.Range(h.now())

	stats, err := h.store.GetBotStats(c.Request().Context(), p, from, to)
	if err != nil {
		h.log.Error("get bot stats", zap.String("period", p.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, BotStatsResponse{Stats: stats, Period: p})
}

// RegisterRoutes mounts the collect endpoint on public and the stats API
// under /admin/analytics behind auth.
func (h *Handler) RegisterRoutes(e *echo.Echo, public *echo.Group, auth echo.MiddlewareFunc) {
	public.POST("/api/analytics/collect", h.Collect)

	admin := e.Group("/admin/analytics", auth)
	admin.GET("/api/stats", h.GetStats)
	admin.GET("/api/bot-stats", h.GetBotStats)
}
