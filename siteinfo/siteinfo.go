// Package siteinfo loads the church details that do not live in Notion
// (name, address, locations, service times, about text) from a YAML file.
package siteinfo

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eringen/chapel/markdown"
)

// Info is the content of site.yaml.
type Info struct {
	Name      string     `mapstructure:"name"`
	Tagline   string     `mapstructure:"tagline"`
	Address   string     `mapstructure:"address"`
	Phone     string     `mapstructure:"phone"`
	Email     string     `mapstructure:"email"`
	Socials   []Social   `mapstructure:"socials"`
	Locations []Location `mapstructure:"locations"`
	Services  []Service  `mapstructure:"services"`
	// About and Giving are Markdown.
	About  string `mapstructure:"about"`
	Giving string `mapstructure:"giving"`
}

// Social is a link to one of the church's social accounts.
type Social struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Location is a campus or meeting place.
type Location struct {
	Name       string `mapstructure:"name"`
	Address    string `mapstructure:"address"`
	MapURL     string `mapstructure:"map_url"`
	Directions string `mapstructure:"directions"` // Markdown
	Parking    string `mapstructure:"parking"`
}

// DirectionsHTML renders the directions Markdown.
func (l Location) DirectionsHTML() template.HTML {
	return markdown.HTML(l.Directions)
}

// Service is a recurring worship service.
type Service struct {
	Name     string `mapstructure:"name"`
	Day      string `mapstructure:"day"`
	Time     string `mapstructure:"time"`
	Location string `mapstructure:"location"`
	Language string `mapstructure:"language"`
}

// Defaults is used when no site file is configured.
func Defaults() Info {
	return Info{Name: "Chapel"}
}

// Load reads the site file at path. Any format viper understands works;
// the extension selects it.
func Load(path string) (Info, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Info{}, fmt.Errorf("siteinfo: read %s: %w", path, err)
	}
	var info Info
	if err := v.Unmarshal(&info); err != nil {
		return Info{}, fmt.Errorf("siteinfo: decode %s: %w", path, err)
	}
	if strings.TrimSpace(info.Name) == "" {
		info.Name = Defaults().Name
	}
	return info, nil
}

// AboutHTML renders the about Markdown.
func (i Info) AboutHTML() template.HTML {
	return markdown.HTML(i.About)
}

// GivingHTML renders the giving Markdown.
func (i Info) GivingHTML() template.HTML {
	return markdown.HTML(i.Giving)
}

// ServiceDay is the services held on one weekday.
type ServiceDay struct {
	Day      string
	Services []Service
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ServicesByDay groups services by weekday, Sunday first. Days that are not
// weekday names ("First Friday") follow in the order they appear.
func (i Info) ServicesByDay() []ServiceDay {
	title := cases.Title(language.English)
	byDay := make(map[string][]Service)
	var others []string
	for _, s := range i.Services {
		key := dayKey(s.Day)
		if _, seen := byDay[key]; !seen && weekdayIndex(key) < 0 {
			others = append(others, key)
		}
		byDay[key] = append(byDay[key], s)
	}
	var out []ServiceDay
	for _, d := range weekdays {
		if ss, ok := byDay[d]; ok {
			out = append(out, ServiceDay{Day: title.String(d), Services: ss})
		}
	}
	for _, d := range others {
		out = append(out, ServiceDay{Day: title.String(d), Services: byDay[d]})
	}
	return out
}

func dayKey(day string) string {
	d := strings.ToLower(strings.TrimSpace(day))
	for _, w := range weekdays {
		if len(d) >= 3 && strings.HasPrefix(w, d) {
			return w
		}
	}
	return d
}

func weekdayIndex(key string) int {
	for i, w := range weekdays {
		if w == key {
			return i
		}
	}
	return -1
}

