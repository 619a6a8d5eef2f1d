package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"herald/pkg/models"
)

// GetPostHistory returns recent posts, optionally filtered by platform and
// status, newest first
func (s *Store) GetPostHistory(ctx context.Context, platform, status string, limit int) ([]models.PostHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, source_id, platform, content, content_hash, status,
		       platform_post_id, error_message, scheduled_for, posted_at, created_at, updated_at
		FROM post_history
		WHERE ($1 = '' OR platform = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, platform, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query post history: %w", err)
	}
	defer rows.Close()

	var posts []models.PostHistory
	for rows.Next() {
		var p models.PostHistory
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Platform, &p.Content, &p.ContentHash, &p.Status,
			&p.PlatformPostID, &p.ErrorMessage, &p.ScheduledFor, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns one post by id
func (s *Store) GetPost(ctx context.Context, postID string) (*models.PostHistory, error) {
	var p models.PostHistory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, platform, content, content_hash, status,
		       platform_post_id, error_message, scheduled_for, posted_at, created_at, updated_at
		FROM post_history
		WHERE id = $1
	`, postID).Scan(&p.ID, &p.SourceID, &p.Platform, &p.Content, &p.ContentHash, &p.Status,
		&p.PlatformPostID, &p.ErrorMessage, &p.ScheduledFor, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}
	return &p, nil
}

// GetPostPerformance returns a post joined with its latest metrics
func (s *Store) GetPostPerformance(ctx context.Context, postID string) (*models.PostPerformance, error) {
	var perf models.PostPerformance
	var rate sql.NullFloat64
	var lastUpdated sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.platform, p.content, p.status, p.platform_post_id, p.posted_at,
		       COALESCE(m.likes, 0), COALESCE(m.comments, 0), COALESCE(m.shares, 0), COALESCE(m.views, 0),
		       m.engagement_rate, m.last_updated
		FROM post_history p
		LEFT JOIN content_metrics m ON m.post_id = p.id
		WHERE p.id = $1
	`, postID).Scan(&perf.PostID, &perf.Platform, &perf.Content, &perf.Status, &perf.PlatformPostID, &perf.PostedAt,
		&perf.Likes, &perf.Comments, &perf.Shares, &perf.Views, &rate, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post performance: %w", err)
	}
	if rate.Valid {
		perf.EngagementRate = rate.Float64
	}
	if lastUpdated.Valid {
		perf.MetricsUpdatedAt = &lastUpdated.Time
	}
	return &perf, nil
}

// GetPlatformAnalytics aggregates posting outcomes and engagement for one
// platform over a trailing window of days
func (s *Store) GetPlatformAnalytics(ctx context.Context, platform string, days int) (*models.PlatformAnalytics, error) {
	if !models.ValidPlatform(platform) {
		return nil, fmt.Errorf("invalid platform %q", platform)
	}
	if days <= 0 || days > 365 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	analytics := &models.PlatformAnalytics{Platform: platform, PeriodDays: days}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE p.status = 'posted'),
		       COUNT(*) FILTER (WHERE p.status = 'failed'),
		       COALESCE(SUM(m.likes), 0), COALESCE(SUM(m.comments), 0),
		       COALESCE(SUM(m.shares), 0), COALESCE(SUM(m.views), 0),
		       COALESCE(AVG(m.engagement_rate), 0)
		FROM post_history p
		LEFT JOIN content_metrics m ON m.post_id = p.id
		WHERE p.platform = $1 AND p.created_at >= $2
	`, platform, cutoff).Scan(&analytics.TotalPosts, &analytics.PostedCount, &analytics.FailedCount,
		&analytics.TotalLikes, &analytics.TotalComments, &analytics.TotalShares, &analytics.TotalViews,
		&analytics.AvgEngagementRate)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform analytics: %w", err)
	}
	return analytics, nil
}

// ListSources returns recently curated sources, newest first
func (s *Store) ListSources(ctx context.Context, limit int) ([]models.ContentSource, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, source_type, category, content_hash, processed_at, created_at
		FROM content_sources
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query content sources: %w", err)
	}
	defer rows.Close()

	var sources []models.ContentSource
	for rows.Next() {
		var src models.ContentSource
		if err := rows.Scan(&src.ID, &src.URL, &src.Title, &src.SourceType, &src.Category,
			&src.ContentHash, &src.ProcessedAt, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ListSafetyLogs returns recent safety check results, newest first
func (s *Store) ListSafetyLogs(ctx context.Context, status string, limit int) ([]models.SafetyLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, post_id, check_type, status, score, issues, checked_at
		FROM safety_logs
		WHERE ($1 = '' OR status = $1)
		ORDER BY checked_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query safety logs: %w", err)
	}
	defer rows.Close()

	var logs []models.SafetyLog
	for rows.Next() {
		var l models.SafetyLog
		if err := rows.Scan(&l.ID, &l.SourceID, &l.PostID, &l.CheckType, &l.Status,
			&l.Score, &l.Issues, &l.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan safety log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PostedPostsSince returns posts that went out within the window and have a
// platform post id to poll metrics for
func (s *Store) PostedPostsSince(ctx context.Context, since time.Time) ([]models.PostHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, platform, content, content_hash, status,
		       platform_post_id, error_message, scheduled_for, posted_at, created_at, updated_at
		FROM post_history
		WHERE status = 'posted' AND platform_post_id IS NOT NULL AND posted_at >= $1
		ORDER BY posted_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query posted posts: %w", err)
	}
	defer rows.Close()

	var posts []models.PostHistory
	for rows.Next() {
		var p models.PostHistory
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Platform, &p.Content, &p.ContentHash, &p.Status,
			&p.PlatformPostID, &p.ErrorMessage, &p.ScheduledFor, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// RecentPostContents returns the content of recent posts on a platform, used
// to reject near-duplicate drafts before posting
func (s *Store) RecentPostContents(ctx context.Context, platform string, within time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-within)
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM post_history
		WHERE platform = $1 AND status IN ('posted', 'scheduled', 'pending', 'generated') AND created_at >= $2
		ORDER BY created_at DESC
	`, platform, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent posts: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// PendingPosts returns generated or scheduled posts awaiting publication
func (s *Store) PendingPosts(ctx context.Context, platform string) ([]models.PostHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, platform, content, content_hash, status,
		       platform_post_id, error_message, scheduled_for, posted_at, created_at, updated_at
		FROM post_history
		WHERE platform = $1 AND status IN ('generated', 'scheduled')
		  AND (scheduled_for IS NULL OR scheduled_for <= NOW())
		ORDER BY created_at ASC
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending posts: %w", err)
	}
	defer rows.Close()

	var posts []models.PostHistory
	for rows.Next() {
		var p models.PostHistory
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Platform, &p.Content, &p.ContentHash, &p.Status,
			&p.PlatformPostID, &p.ErrorMessage, &p.ScheduledFor, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
