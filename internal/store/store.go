package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"herald/pkg/logging"
	"herald/pkg/models"
)

// Store wraps the content pipeline tables
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// New creates a store over an open database connection
func New(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ContentHash returns the canonical dedup hash for a piece of content
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddContentSource inserts a curated source row and returns its id.
// A conflicting content_hash returns ErrDuplicateSource.
func (s *Store) AddContentSource(ctx context.Context, src models.ContentSource) (string, error) {
	if src.ContentHash == "" {
		var url, title string
		if src.URL != nil {
			url = *src.URL
		}
		if src.Title != nil {
			title = *src.Title
		}
		src.ContentHash = ContentHash(url + title)
	}
	if src.SourceType == "" {
		src.SourceType = "rss"
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO content_sources (url, title, source_type, category, content_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id
	`, src.URL, src.Title, src.SourceType, src.Category, src.ContentHash).Scan(&id)

	if err == sql.ErrNoRows {
		return "", ErrDuplicateSource
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert content source: %w", err)
	}
	return id, nil
}

// ErrDuplicateSource is returned when a source's content hash already exists
var ErrDuplicateSource = fmt.Errorf("content source already exists")

// HasContentHash reports whether a content hash was seen within the window
func (s *Store) HasContentHash(ctx context.Context, hash string, within time.Duration) (bool, error) {
	cutoff := time.Now().Add(-within)
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM content_sources WHERE content_hash = $1 AND created_at >= $2
			UNION ALL
			SELECT 1 FROM post_history WHERE content_hash = $1 AND created_at >= $2
			LIMIT 1
		)
	`, hash, cutoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return exists, nil
}

// MarkSourceProcessed stamps processed_at on a source once its digest is built
func (s *Store) MarkSourceProcessed(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE content_sources SET processed_at = NOW() WHERE id = $1
	`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to mark source processed: %w", err)
	}
	return nil
}

// CreatePost inserts a post_history row and returns its id
func (s *Store) CreatePost(ctx context.Context, post models.PostHistory) (string, error) {
	if !models.ValidPlatform(post.Platform) {
		return "", fmt.Errorf("invalid platform %q", post.Platform)
	}
	if post.Status == "" {
		post.Status = models.StatusPending
	}
	if !models.ValidStatus(post.Status) {
		return "", fmt.Errorf("invalid status %q", post.Status)
	}
	if post.ContentHash == "" {
		post.ContentHash = ContentHash(post.Content)
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO post_history (source_id, platform, content, content_hash, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, post.SourceID, post.Platform, post.Content, post.ContentHash, post.Status, post.ScheduledFor).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert post: %w", err)
	}
	return id, nil
}

// UpdatePostStatus moves a post through its lifecycle. A transition to posted
// stamps posted_at and records the platform post id.
func (s *Store) UpdatePostStatus(ctx context.Context, postID, status string, platformPostID, errorMessage *string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	var result sql.Result
	var err error
	if status == models.StatusPosted {
		result, err = s.db.ExecContext(ctx, `
			UPDATE post_history
			SET status = $1, platform_post_id = $2, error_message = $3, posted_at = NOW(), updated_at = NOW()
			WHERE id = $4
		`, status, platformPostID, errorMessage, postID)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE post_history
			SET status = $1, error_message = $2, updated_at = NOW()
			WHERE id = $3
		`, status, errorMessage, postID)
	}
	if err != nil {
		return fmt.Errorf("failed to update post status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s not found", postID)
	}
	return nil
}

// AddSafetyLog records a safety check outcome
func (s *Store) AddSafetyLog(ctx context.Context, log models.SafetyLog) error {
	issues, err := log.Issues.Value()
	if err != nil {
		return fmt.Errorf("failed to encode safety issues: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO safety_logs (source_id, post_id, check_type, status, score, issues)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.SourceID, log.PostID, log.CheckType, log.Status, log.Score, issues)
	if err != nil {
		return fmt.Errorf("failed to insert safety log: %w", err)
	}
	return nil
}

// UpsertMetrics writes engagement counters for a post, appending the previous
// values to the metrics history. engagement_rate and performance_score are
// derived from the counters: the rate is raw interactions per view, the score
// weights comments and shares above likes and scales to 0-100.
func (s *Store) UpsertMetrics(ctx context.Context, postID string, snapshot models.MetricsSnapshot, platformMetrics models.JSONB) error {
	var rate, score float64
	if snapshot.Views > 0 {
		rate = float64(snapshot.Likes+snapshot.Comments+snapshot.Shares) / float64(snapshot.Views)
		score = float64(snapshot.Likes+2*snapshot.Comments+3*snapshot.Shares) / float64(snapshot.Views) * 100
	}

	snapshot.Timestamp = time.Now().UTC()
	entry, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode metrics snapshot: %w", err)
	}
	platform, err := platformMetrics.Value()
	if err != nil {
		return fmt.Errorf("failed to encode platform metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content_metrics (post_id, likes, comments, shares, views, engagement_rate, performance_score, platform_metrics, metrics_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, jsonb_build_array($9::jsonb))
		ON CONFLICT (post_id) DO UPDATE SET
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			views = EXCLUDED.views,
			engagement_rate = EXCLUDED.engagement_rate,
			performance_score = EXCLUDED.performance_score,
			platform_metrics = EXCLUDED.platform_metrics,
			metrics_history = content_metrics.metrics_history || $9::jsonb,
			last_updated = NOW()
	`, postID, snapshot.Likes, snapshot.Comments, snapshot.Shares, snapshot.Views, rate, score, platform, entry)
	if err != nil {
		return fmt.Errorf("failed to upsert metrics: %w", err)
	}
	return nil
}
