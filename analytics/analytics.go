// Package analytics records privacy-first page view statistics: no
// cookies, salted hashes instead of IP addresses, Do Not Track honoured and
// crawlers kept in a separate table.
package analytics

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads the installation's hashing salt, generating and storing
// one on first run. Call it before serving requests.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		s, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("analytics: read salt: %w", err)
			return
		}
		if s == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("analytics: generate salt: %w", err)
				return
			}
			s = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", s); err != nil {
				initErr = fmt.Errorf("analytics: store salt: %w", err)
				return
			}
		}
		salt.value = s
	})
	return initErr
}

func digest(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(salt.value))
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// HashIP returns a salted, truncated hash of ip.
func HashIP(ip string) string { return digest(ip) }

// VisitorID identifies a visitor by address and browser without storing either.
func VisitorID(ip, userAgent string) string { return digest(ip, userAgent) }

// SessionID groups a visitor's views within one UTC day.
func SessionID(visitorID string, t time.Time) string {
	return digest(visitorID, t.UTC().Format("2006-01-02"))
}

// Visit is one human page view.
type Visit struct {
	VisitorID   string
	SessionID   string
	IPHash      string
	Browser     string
	OS          string
	Device      string
	Path        string
	Referrer    string
	ScreenSize  string
	Timestamp   time.Time
	DurationSec int
}

// BotVisit is one crawler page view.
type BotVisit struct {
	BotName   string
	IPHash    string
	UserAgent string
	Path      string
	Timestamp time.Time
}

// Stats aggregates human visits for a period.
type Stats struct {
	Period         string            `json:"period"`
	UniqueVisitors int               `json:"unique_visitors"`
	TotalViews     int               `json:"total_views"`
	AvgDuration    int               `json:"avg_duration_sec"`
	TopPages       []PageStat        `json:"top_pages"`
	LatestPages    []LatestPageVisit `json:"latest_pages"`
	Browsers       []DimensionStat   `json:"browsers"`
	OS             []DimensionStat   `json:"os"`
	Devices        []DimensionStat   `json:"devices"`
	Referrers      []DimensionStat   `json:"referrers"`
	Series         []SeriesPoint     `json:"series"`
}

// BotStats aggregates crawler visits for a period.
type BotStats struct {
	Period      string          `json:"period"`
	TotalVisits int             `json:"total_visits"`
	TopBots     []DimensionStat `json:"top_bots"`
	TopPages    []PageStat      `json:"top_pages"`
	Series      []SeriesPoint   `json:"series"`
}

type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

type LatestPageVisit struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Browser   string `json:"browser"`
}

type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SeriesPoint is the view count for one hour, day or month.
type SeriesPoint struct {
	Label string `json:"label"`
	Views int    `json:"views"`
}

type uaRule struct {
	needles []string
	name    string
}

// First match wins, so specific tokens precede the generic ones they
// contain (Edge and Opera UAs also say "chrome", Android says "linux",
// iPad says "mobile").
var (
	browserRules = []uaRule{
		{[]string{"firefox", "fxios"}, "Firefox"},
		{[]string{"opr/", "opera"}, "Opera"},
		{[]string{"edg"}, "Edge"},
		{[]string{"samsungbrowser"}, "Samsung Internet"},
		{[]string{"chrome", "crios"}, "Chrome"},
		{[]string{"safari"}, "Safari"},
	}
	osRules = []uaRule{
		{[]string{"windows"}, "Windows"},
		{[]string{"android"}, "Android"},
		{[]string{"iphone", "ipad", "ipod"}, "iOS"},
		{[]string{"macintosh", "mac os"}, "macOS"},
		{[]string{"cros"}, "ChromeOS"},
		{[]string{"linux"}, "Linux"},
	}
	deviceRules = []uaRule{
		{[]string{"tablet", "ipad"}, "Tablet"},
		{[]string{"mobile", "iphone"}, "Mobile"},
	}
	botRules = []uaRule{
		{[]string{"googlebot"}, "Googlebot"},
		{[]string{"bingbot"}, "Bingbot"},
		{[]string{"yandex"}, "Yandex"},
		{[]string{"baidu"}, "Baidu"},
		{[]string{"duckduckbot"}, "DuckDuckBot"},
		{[]string{"applebot"}, "Applebot"},
		{[]string{"facebookexternalhit"}, "Facebook"},
		{[]string{"twitterbot"}, "Twitterbot"},
		{[]string{"linkedinbot"}, "LinkedIn"},
		{[]string{"ahrefsbot"}, "Ahrefs"},
		{[]string{"semrushbot"}, "SEMrush"},
		{[]string{"mj12bot"}, "Majestic"},
		{[]string{"dotbot"}, "Moz"},
		{[]string{"slurp"}, "Yahoo Slurp"},
		{[]string{"crawler", "crawl"}, "Generic Crawler"},
		{[]string{"spider"}, "Generic Spider"},
		{[]string{"scrape"}, "Scraper"},
		{[]string{"bot"}, "Other Bot"},
	}
)

func match(ua string, rules []uaRule, fallback string) string {
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(ua, n) {
				return r.name
			}
		}
	}
	return fallback
}

// ParseUserAgent extracts browser, OS and device class from a User-Agent.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)
	return match(ua, browserRules, "Other"), match(ua, osRules, "Other"), match(ua, deviceRules, "Desktop")
}

// IsBot reports whether ua looks like a crawler.
func IsBot(ua string) bool {
	return BotName(ua) != ""
}

// BotName names the crawler behind ua, or "" for a browser.
func BotName(ua string) string {
	return match(strings.ToLower(ua), botRules, "")
}

var knownReferrers = []uaRule{
	{[]string{"google."}, "Google"},
	{[]string{"bing."}, "Bing"},
	{[]string{"duckduckgo."}, "DuckDuckGo"},
	{[]string{"yahoo."}, "Yahoo"},
	{[]string{"facebook.", "fb.me"}, "Facebook"},
	{[]string{"instagram."}, "Instagram"},
	{[]string{"youtube.", "youtu.be"}, "YouTube"},
}

// CleanReferrer reduces a referrer URL to a source name or bare host.
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "Other"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return match(host, knownReferrers, host)
}
