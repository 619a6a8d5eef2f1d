package models

import "time"

// RunPipelineRequest triggers a pipeline run. Categories narrow curation to
// matching feed sources; platforms default to the configured set.
type RunPipelineRequest struct {
	Categories []string `json:"categories,omitempty"`
	Platforms  []string `json:"platforms,omitempty"`
}

// RunPipelineResponse is returned when a run has been accepted
type RunPipelineResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// PipelineRunStatus summarizes a pipeline run
type PipelineRunStatus struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Curated     int        `json:"curated"`
	Rejected    int        `json:"rejected"`
	Posted      int        `json:"posted"`
	Failed      int        `json:"failed"`
	ErrorDetail string     `json:"error,omitempty"`
}

// PostPerformance is a post joined with its latest engagement metrics
type PostPerformance struct {
	PostID           string     `json:"post_id"`
	Platform         string     `json:"platform"`
	Content          string     `json:"content"`
	Status           string     `json:"status"`
	PlatformPostID   *string    `json:"platform_post_id,omitempty"`
	PostedAt         *time.Time `json:"posted_at,omitempty"`
	Likes            int64      `json:"likes"`
	Comments         int64      `json:"comments"`
	Shares           int64      `json:"shares"`
	Views            int64      `json:"views"`
	EngagementRate   float64    `json:"engagement_rate"`
	MetricsUpdatedAt *time.Time `json:"metrics_updated_at,omitempty"`
}

// PlatformAnalytics aggregates engagement for one platform over a trailing
// window of days
type PlatformAnalytics struct {
	Platform          string  `json:"platform"`
	PeriodDays        int     `json:"period_days"`
	TotalPosts        int     `json:"total_posts"`
	PostedCount       int     `json:"posted_count"`
	FailedCount       int     `json:"failed_count"`
	TotalLikes        int64   `json:"total_likes"`
	TotalComments     int64   `json:"total_comments"`
	TotalShares       int64   `json:"total_shares"`
	TotalViews        int64   `json:"total_views"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error string `json:"error"`
}
