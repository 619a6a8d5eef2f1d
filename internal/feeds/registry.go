package feeds

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"herald/pkg/config"
)

// Feed is one RSS/Atom source in the registry
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// registryFile is the on-disk shape of FEEDS_CONFIG
type registryFile struct {
	Feeds          []Feed   `yaml:"feeds"`
	NewsAPISources []string `yaml:"newsapi_sources"`
	NewsAPIQuery   string   `yaml:"newsapi_query"`
}

// Registry holds the configured content sources for a pipeline run
type Registry struct {
	feeds          []Feed
	newsAPISources []string
	newsAPIQuery   string
}

// defaultFeeds is the built-in source set used when no config file is given
var defaultFeeds = []Feed{
	{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Category: "tech"},
	{Name: "Wired", URL: "https://www.wired.com/feed/rss", Category: "tech"},
	{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml", Category: "tech"},
	{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index", Category: "tech"},
	{Name: "Engadget", URL: "https://www.engadget.com/rss.xml", Category: "tech"},
	{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Category: "tech"},
}

const defaultNewsAPIQuery = "artificial intelligence OR machine learning OR technology"

// LoadRegistry builds the registry from FEEDS_CONFIG if set, falling back to
// the built-in feed set. Feeds with enabled: false are dropped at load time.
func LoadRegistry() (*Registry, error) {
	path := config.GetEnv("FEEDS_CONFIG", "")
	if path == "" {
		return &Registry{
			feeds:        append([]Feed(nil), defaultFeeds...),
			newsAPIQuery: defaultNewsAPIQuery,
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config %s: %w", path, err)
	}

	reg := &Registry{
		newsAPISources: file.NewsAPISources,
		newsAPIQuery:   file.NewsAPIQuery,
	}
	if reg.newsAPIQuery == "" {
		reg.newsAPIQuery = defaultNewsAPIQuery
	}
	for _, f := range file.Feeds {
		if f.URL == "" {
			return nil, fmt.Errorf("feed %q has no url", f.Name)
		}
		if f.Enabled != nil && !*f.Enabled {
			continue
		}
		reg.feeds = append(reg.feeds, f)
	}
	if len(reg.feeds) == 0 && len(reg.newsAPISources) == 0 {
		return nil, fmt.Errorf("feeds config %s has no enabled sources", path)
	}
	return reg, nil
}

// Feeds returns the enabled RSS feeds, optionally narrowed to the given
// categories
func (r *Registry) Feeds(categories ...string) []Feed {
	if len(categories) == 0 {
		return r.feeds
	}
	var out []Feed
	for _, f := range r.feeds {
		if categoryMatches(f.Category, categories) {
			out = append(out, f)
		}
	}
	return out
}

// categoryMatches reports whether category is in the filter. An empty filter
// matches everything.
func categoryMatches(category string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		if strings.EqualFold(category, want) {
			return true
		}
	}
	return false
}

// NewsAPISources returns the configured NewsAPI source ids, if any
func (r *Registry) NewsAPISources() []string {
	return r.newsAPISources
}

// NewsAPIQuery returns the query used against the NewsAPI everything endpoint
func (r *Registry) NewsAPIQuery() string {
	return r.newsAPIQuery
}
