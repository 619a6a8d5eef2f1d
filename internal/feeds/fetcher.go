package feeds

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"herald/pkg/clients"
	"herald/pkg/clients/newsapi"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// Fetcher pulls raw articles from RSS feeds and NewsAPI
type Fetcher struct {
	registry *Registry
	newsAPI  *newsapi.Client
	parser   *gofeed.Parser
	logger   logging.Logger

	feedTimeout time.Duration
	maxPerFeed  int
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithNewsAPI attaches a NewsAPI client. Without one, only RSS feeds are
// fetched.
func WithNewsAPI(client *newsapi.Client) FetcherOption {
	return func(f *Fetcher) { f.newsAPI = client }
}

// WithFeedTimeout overrides the per-feed fetch timeout
func WithFeedTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.feedTimeout = d }
}

// WithMaxPerFeed caps how many items are taken from each feed
func WithMaxPerFeed(n int) FetcherOption {
	return func(f *Fetcher) { f.maxPerFeed = n }
}

// NewFetcher creates a fetcher over the given registry
func NewFetcher(registry *Registry, logger logging.Logger, opts ...FetcherOption) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Timeout:   30 * time.Second,
		Transport: clients.DefaultTransport(),
	}
	parser.UserAgent = "herald/1.0"

	f := &Fetcher{
		registry:    registry,
		parser:      parser,
		logger:      logger,
		feedTimeout: 30 * time.Second,
		maxPerFeed:  10,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newsAPICategory is the category NewsAPI results belong to when runs are
// narrowed by category
const newsAPICategory = "technology"

// FetchAll gathers articles from every configured source. Individual feed
// failures are logged and skipped so one dead feed cannot starve the run.
// Categories narrow the fetch to matching feeds; results are sorted newest
// first.
func (f *Fetcher) FetchAll(ctx context.Context, categories ...string) ([]models.Article, error) {
	var articles []models.Article

	for _, feed := range f.registry.Feeds(categories...) {
		items, err := f.fetchFeed(ctx, feed)
		if err != nil {
			if ctx.Err() != nil {
				return articles, ctx.Err()
			}
			f.logger.WithFields(logging.Fields{
				"feed":  feed.Name,
				"url":   feed.URL,
				"error": err,
			}).Warn("Failed to fetch feed, skipping")
			continue
		}
		articles = append(articles, items...)
	}

	if f.newsAPI != nil && categoryMatches(newsAPICategory, categories) {
		items, err := f.fetchNewsAPI(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return articles, ctx.Err()
			}
			f.logger.WithFields(logging.Fields{"error": err}).Warn("NewsAPI fetch failed, continuing with RSS results")
		} else {
			articles = append(articles, items...)
		}
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("no articles fetched from any source")
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	return articles, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed Feed) ([]models.Article, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.feedTimeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(feed.URL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var articles []models.Article
	for i, item := range parsed.Items {
		if i >= f.maxPerFeed {
			break
		}
		if item.Link == "" || item.Title == "" {
			continue
		}
		article := models.Article{
			Title:      item.Title,
			URL:        item.Link,
			Summary:    item.Description,
			Source:     feed.Name,
			SourceType: "rss",
			Category:   feed.Category,
		}
		if item.PublishedParsed != nil {
			article.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.PublishedAt = *item.UpdatedParsed
		}
		articles = append(articles, article)
	}

	f.logger.WithFields(logging.Fields{
		"feed":     feed.Name,
		"articles": len(articles),
	}).Debug("Fetched feed")
	return articles, nil
}

// fetchNewsAPI queries the everything endpoint and falls back to top
// headlines when the query returns nothing
func (f *Fetcher) fetchNewsAPI(ctx context.Context) ([]models.Article, error) {
	params := newsapi.EverythingParams{
		Query:    f.registry.NewsAPIQuery(),
		Sources:  f.registry.NewsAPISources(),
		Language: "en",
		SortBy:   "publishedAt",
		PageSize: 20,
	}
	results, err := f.newsAPI.Everything(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results, err = f.newsAPI.TopHeadlines(ctx, "technology", "en", 20)
		if err != nil {
			return nil, err
		}
	}

	articles := make([]models.Article, 0, len(results))
	for _, r := range results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		article := models.Article{
			Title:       r.Title,
			URL:         r.URL,
			Summary:     r.Description,
			Source:      r.Source.Name,
			SourceType:  "newsapi",
			Category:    "news",
			PublishedAt: r.PublishedAt,
		}
		articles = append(articles, article)
	}
	return articles, nil
}
