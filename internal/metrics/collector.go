package metrics

import (
	"context"
	"time"

	"herald/internal/store"
	"herald/pkg/clients/linkedin"
	"herald/pkg/clients/twitter"
	"herald/pkg/config"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// Reader fetches current engagement counters for one platform post
type Reader interface {
	Read(ctx context.Context, platformPostID string) (models.MetricsSnapshot, models.JSONB, error)
}

// Collector polls platform engagement for recently posted content and writes
// it into content_metrics
type Collector struct {
	store   *store.Store
	readers map[string]Reader
	logger  logging.Logger

	pollInterval time.Duration
	lookback     time.Duration
}

// NewCollector creates a collector. METRICS_POLL_INTERVAL sets the cadence
// and METRICS_LOOKBACK_DAYS how far back posts are still polled.
func NewCollector(st *store.Store, readers map[string]Reader, logger logging.Logger) *Collector {
	return &Collector{
		store:        st,
		readers:      readers,
		logger:       logger,
		pollInterval: config.GetEnvDuration("METRICS_POLL_INTERVAL", time.Hour),
		lookback:     time.Duration(config.GetEnvInt("METRICS_LOOKBACK_DAYS", 7)) * 24 * time.Hour,
	}
}

// Run polls on the configured interval until the context is cancelled. An
// initial pass runs immediately.
func (c *Collector) Run(ctx context.Context) {
	if _, err := c.CollectOnce(ctx); err != nil {
		c.logger.WithFields(logging.Fields{"error": err}).Warn("Initial metrics pass failed")
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.CollectOnce(ctx); err != nil {
				c.logger.WithFields(logging.Fields{"error": err}).Warn("Metrics pass failed")
			}
		}
	}
}

// CollectOnce refreshes metrics for every post inside the lookback window.
// Per-post read failures are logged and skipped. Returns how many posts were
// updated.
func (c *Collector) CollectOnce(ctx context.Context) (int, error) {
	posts, err := c.store.PostedPostsSince(ctx, time.Now().Add(-c.lookback))
	if err != nil {
		return 0, err
	}

	var updated int
	for _, post := range posts {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		reader, ok := c.readers[post.Platform]
		if !ok || post.PlatformPostID == nil {
			continue
		}

		snapshot, platformMetrics, err := reader.Read(ctx, *post.PlatformPostID)
		if err != nil {
			c.logger.WithFields(logging.Fields{
				"post_id":  post.ID,
				"platform": post.Platform,
				"error":    err,
			}).Warn("Failed to read platform metrics")
			continue
		}
		if err := c.store.UpsertMetrics(ctx, post.ID, snapshot, platformMetrics); err != nil {
			c.logger.WithFields(logging.Fields{"post_id": post.ID, "error": err}).Warn("Failed to store metrics")
			continue
		}
		updated++
	}

	c.logger.WithFields(logging.Fields{
		"posts":   len(posts),
		"updated": updated,
	}).Info("Metrics collection pass complete")
	return updated, nil
}

// TwitterReader reads engagement for tweets. Retweets map to shares.
type TwitterReader struct {
	Client interface {
		GetTweetMetrics(ctx context.Context, tweetID string) (*twitter.TweetMetrics, error)
	}
}

func (r *TwitterReader) Read(ctx context.Context, tweetID string) (models.MetricsSnapshot, models.JSONB, error) {
	m, err := r.Client.GetTweetMetrics(ctx, tweetID)
	if err != nil {
		return models.MetricsSnapshot{}, nil, err
	}
	snapshot := models.MetricsSnapshot{
		Likes:    m.Likes,
		Comments: m.Replies,
		Shares:   m.Retweets,
		Views:    m.Views,
	}
	platform := models.JSONB{
		"retweet_count":  m.Retweets,
		"reply_count":    m.Replies,
		"favorite_count": m.Likes,
		"view_count":     m.Views,
	}
	return snapshot, platform, nil
}

// LinkedInReader reads social counts for shares
type LinkedInReader struct {
	Client interface {
		GetSocialCounts(ctx context.Context, urn string) (*linkedin.SocialCounts, error)
	}
}

func (r *LinkedInReader) Read(ctx context.Context, urn string) (models.MetricsSnapshot, models.JSONB, error) {
	counts, err := r.Client.GetSocialCounts(ctx, urn)
	if err != nil {
		return models.MetricsSnapshot{}, nil, err
	}
	snapshot := models.MetricsSnapshot{
		Likes:    counts.Likes,
		Comments: counts.Comments,
		Shares:   counts.Shares,
		Views:    counts.Views,
	}
	platform := models.JSONB{
		"numLikes":    counts.Likes,
		"numComments": counts.Comments,
		"numShares":   counts.Shares,
		"numViews":    counts.Views,
	}
	return snapshot, platform, nil
}
