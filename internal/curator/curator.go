package curator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herald/internal/feeds"
	"herald/internal/store"
	"herald/pkg/config"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// CuratedItem is one article that survived dedup and ranking, enriched with
// extracted text and an LLM summary
type CuratedItem struct {
	SourceID string
	Article  models.Article
	Extract  string
	Summary  string
}

// Digest is the output of a curation pass: the selected items plus a combined
// trends digest used as generation context
type Digest struct {
	Items  []CuratedItem
	Trends string
}

// Material flattens the digest into the text the safety screen inspects
// before any generation happens
func (d *Digest) Material() string {
	var b strings.Builder
	for _, item := range d.Items {
		b.WriteString(item.Article.Title)
		b.WriteString("\n")
		b.WriteString(item.Summary)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// Curator selects, deduplicates and summarizes fresh articles
type Curator struct {
	store     *store.Store
	fetcher   *feeds.Fetcher
	extractor *Extractor
	provider  llm.Provider
	logger    logging.Logger

	maxArticles int
	dedupWindow time.Duration
}

// New creates a curator. Limits come from CURATOR_MAX_ARTICLES and
// CURATOR_DEDUP_DAYS.
func New(st *store.Store, fetcher *feeds.Fetcher, provider llm.Provider, logger logging.Logger) *Curator {
	return &Curator{
		store:       st,
		fetcher:     fetcher,
		extractor:   NewExtractor(),
		provider:    provider,
		logger:      logger,
		maxArticles: config.GetEnvInt("CURATOR_MAX_ARTICLES", 5),
		dedupWindow: time.Duration(config.GetEnvInt("CURATOR_DEDUP_DAYS", 30)) * 24 * time.Hour,
	}
}

// Curate runs one curation pass: fetch, dedup against history, rank, extract
// and summarize the top articles, then build the trends digest. Extraction
// and summarization failures degrade to the feed-provided summary rather than
// dropping the article. Categories narrow the fetch to matching sources.
func (c *Curator) Curate(ctx context.Context, categories ...string) (*Digest, error) {
	articles, err := c.fetcher.FetchAll(ctx, categories...)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	c.logger.WithFields(logging.Fields{"articles": len(articles)}).Info("Fetched candidate articles")

	fresh, err := c.dedup(ctx, articles)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, fmt.Errorf("no new articles after dedup")
	}

	ranked := rankArticles(fresh, time.Now())
	if len(ranked) > c.maxArticles {
		ranked = ranked[:c.maxArticles]
	}

	var items []CuratedItem
	for _, article := range ranked {
		item, err := c.enrich(ctx, article)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithFields(logging.Fields{
				"url":   article.URL,
				"error": err,
			}).Warn("Failed to curate article, skipping")
			continue
		}
		items = append(items, *item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no articles survived curation")
	}

	trends, err := c.buildTrends(ctx, items)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithFields(logging.Fields{"error": err}).Warn("Trends digest failed, using summaries")
		trends = fallbackTrends(items)
	}

	return &Digest{Items: items, Trends: trends}, nil
}

// dedup drops articles whose content hash was seen within the dedup window,
// including duplicates within the batch itself
func (c *Curator) dedup(ctx context.Context, articles []models.Article) ([]models.Article, error) {
	seen := make(map[string]bool, len(articles))
	var fresh []models.Article
	for _, a := range articles {
		hash := store.ContentHash(a.URL + a.Title)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		exists, err := c.store.HasContentHash(ctx, hash, c.dedupWindow)
		if err != nil {
			return nil, fmt.Errorf("dedup check failed: %w", err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, a)
	}
	c.logger.WithFields(logging.Fields{
		"candidates": len(articles),
		"fresh":      len(fresh),
	}).Info("Deduplicated articles")
	return fresh, nil
}

// enrich extracts and summarizes one article and persists its source row
func (c *Curator) enrich(ctx context.Context, article models.Article) (*CuratedItem, error) {
	extract, err := c.extractor.Extract(ctx, article.URL)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"url":   article.URL,
			"error": err,
		}).Debug("Extraction failed, falling back to feed summary")
		extract = article.Summary
	}

	summary, err := c.summarize(ctx, article, extract)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		summary = article.Summary
	}
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("no usable summary for %s", article.URL)
	}

	sourceType := article.SourceType
	if sourceType == "" {
		sourceType = "rss"
	}
	src := models.ContentSource{
		URL:        &article.URL,
		Title:      &article.Title,
		SourceType: sourceType,
		Category:   article.Category,
	}

	sourceID, err := c.store.AddContentSource(ctx, src)
	if err == store.ErrDuplicateSource {
		return nil, fmt.Errorf("source raced into history: %s", article.URL)
	}
	if err != nil {
		return nil, err
	}
	if err := c.store.MarkSourceProcessed(ctx, sourceID); err != nil {
		c.logger.WithFields(logging.Fields{"source_id": sourceID, "error": err}).Warn("Failed to stamp source")
	}

	return &CuratedItem{
		SourceID: sourceID,
		Article:  article,
		Extract:  extract,
		Summary:  summary,
	}, nil
}

func (c *Curator) summarize(ctx context.Context, article models.Article, extract string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize this article in 2-3 sentences for a tech-savvy audience. Focus on what happened and why it matters.\n\nTitle: %s\nSource: %s\n\n%s",
		article.Title, article.Source, extract)

	return llm.CompleteText(ctx, c.provider, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a sharp tech news editor. Be concise and factual."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	})
}

// buildTrends asks the model for the themes connecting the selected articles
func (c *Curator) buildTrends(ctx context.Context, items []CuratedItem) (string, error) {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n\n", i+1, item.Article.Title, item.Article.Source, item.Summary)
	}

	return llm.CompleteText(ctx, c.provider, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a tech trends analyst."},
			{Role: "user", Content: "Identify the key themes connecting today's stories and what they signal for the industry. Keep it under 200 words.\n\n" + b.String()},
		},
		MaxTokens:   400,
		Temperature: 0.5,
	})
}

func fallbackTrends(items []CuratedItem) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- " + item.Article.Title + ": " + item.Summary + "\n")
	}
	return b.String()
}
