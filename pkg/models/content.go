package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB represents a PostgreSQL JSONB column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Platform identifiers
const (
	PlatformTwitter  = "twitter"
	PlatformLinkedIn = "linkedin"
)

// Platforms lists every platform the poster can target
var Platforms = []string{PlatformTwitter, PlatformLinkedIn}

// Post lifecycle statuses
const (
	StatusPending   = "pending"
	StatusGenerated = "generated"
	StatusScheduled = "scheduled"
	StatusPosted    = "posted"
	StatusFailed    = "failed"
)

// ValidPlatform reports whether p is a known platform identifier
func ValidPlatform(p string) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known post status
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusGenerated, StatusScheduled, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// Article is a raw article pulled from a feed or news API, before curation
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	SourceType  string    `json:"source_type"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// ContentSource represents a curated article tracked for dedup and attribution.
// Rows are immutable after creation except for the processed_at stamp.
type ContentSource struct {
	ID          string     `json:"id" db:"id"`
	URL         *string    `json:"url,omitempty" db:"url"`
	Title       *string    `json:"title,omitempty" db:"title"`
	SourceType  string     `json:"source_type" db:"source_type"`
	Category    string     `json:"category" db:"category"`
	ContentHash string     `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// PostHistory records an attempted or completed post on a platform
type PostHistory struct {
	ID             string     `json:"id" db:"id"`
	SourceID       *string    `json:"source_id,omitempty" db:"source_id"`
	Platform       string     `json:"platform" db:"platform"`
	Content        string     `json:"content" db:"content"`
	ContentHash    string     `json:"content_hash" db:"content_hash"`
	PlatformPostID *string    `json:"platform_post_id,omitempty" db:"platform_post_id"`
	Status         string     `json:"status" db:"status"`
	ErrorMessage   *string    `json:"error_message,omitempty" db:"error_message"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty" db:"scheduled_for"`
	PostedAt       *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// Joined engagement counters, when requested
	Metrics *ContentMetrics `json:"metrics,omitempty"`
}

// ContentMetrics holds engagement counters for a post
type ContentMetrics struct {
	ID               string    `json:"id" db:"id"`
	PostID           string    `json:"post_id" db:"post_id"`
	Likes            int64     `json:"likes" db:"likes"`
	Comments         int64     `json:"comments" db:"comments"`
	Shares           int64     `json:"shares" db:"shares"`
	Views            int64     `json:"views" db:"views"`
	EngagementRate   float64   `json:"engagement_rate" db:"engagement_rate"`
	PerformanceScore float64   `json:"performance_score" db:"performance_score"`
	PlatformMetrics  JSONB     `json:"platform_metrics,omitempty" db:"platform_metrics"`
	MetricsHistory   []byte    `json:"-" db:"metrics_history"`
	FirstTracked     time.Time `json:"first_tracked" db:"first_tracked"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
}

// MetricsSnapshot is one entry in a post's metrics history
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
	Shares    int64     `json:"shares"`
	Views     int64     `json:"views"`
}

// SafetyLog records the outcome of one safety check against a content source
type SafetyLog struct {
	ID        string    `json:"id" db:"id"`
	SourceID  *string   `json:"source_id,omitempty" db:"source_id"`
	PostID    *string   `json:"post_id,omitempty" db:"post_id"`
	CheckType string    `json:"check_type" db:"check_type"`
	Status    string    `json:"status" db:"status"`
	Score     float64   `json:"score" db:"score"`
	Issues    JSONB     `json:"issues,omitempty" db:"issues"`
	CheckedAt time.Time `json:"checked_at" db:"checked_at"`
}

// Safety check types
const (
	CheckModeration = "moderation"
	CheckCompliance = "compliance"
	CheckDuplicate  = "duplicate"
)

// Safety check statuses
const (
	SafetyPass = "pass"
	SafetyFail = "fail"
)
