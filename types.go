package chapel

import (
	"sync"

	"github.com/a-h/templ"

	"github.com/eringen/chapel/siteinfo"
	"github.com/eringen/chapel/views"
)

// ViewFuncs holds the components the handlers render. DefaultViews returns
// the built-in set; replace any field to customize a page.
type ViewFuncs struct {
	Home            func(views.HomePage) templ.Component
	List            func(views.ListPage) templ.Component
	ListPartial     func(views.ListPage) templ.Component
	Entry           func(views.EntryPage) templ.Component
	Schedule        func(views.SchedulePage) templ.Component
	SchedulePartial func(views.SchedulePage) templ.Component
	Staff           func(views.StaffPage) templ.Component
	About           func(views.AboutPage) templ.Component
	AdminLogin      func(views.AdminLoginPage) templ.Component
	AdminDashboard  func(views.AdminDashboardPage) templ.Component
	NotFound        func(views.ErrorPage) templ.Component
	ServerError     func(views.ErrorPage) templ.Component
}

// DefaultViews returns the embedded templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:            views.Home,
		List:            views.List,
		ListPartial:     views.ListPartial,
		Entry:           views.Entry,
		Schedule:        views.Schedule,
		SchedulePartial: views.SchedulePartial,
		Staff:           views.Staff,
		About:           views.About,
		AdminLogin:      views.AdminLogin,
		AdminDashboard:  views.AdminDashboard,
		NotFound:        views.NotFound,
		ServerError:     views.ServerError,
	}
}

// SiteInfo holds the current site file contents. It is swapped whole when
// the file is reloaded.
type SiteInfo struct {
	mu   sync.RWMutex
	info siteinfo.Info
}

// Get returns the current info.
func (s *SiteInfo) Get() siteinfo.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Set replaces the info.
func (s *SiteInfo) Set(info siteinfo.Info) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}
