package handlers

import (
	"net/http"
	"strconv"

	"herald/internal/pipeline"
	"herald/internal/store"
	"herald/pkg/logging"
	"herald/pkg/middleware"
	"herald/pkg/models"
)

var (
	st     *store.Store
	pipe   *pipeline.Pipeline
	logger logging.Logger
)

// Init initializes the handlers with their collaborators
func Init(s *store.Store, p *pipeline.Pipeline, log logging.Logger) {
	st = s
	pipe = p
	logger = log
}

// RunPipeline triggers a pipeline run and returns its tracking id
func RunPipeline(c middleware.Context) {
	var req models.RunPipelineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
	}
	for _, platform := range req.Platforms {
		if !models.ValidPlatform(platform) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid platform: " + platform})
			return
		}
	}

	run := pipe.Trigger("manual", req.Platforms, req.Categories)
	logger.WithField("run_id", run.ID).Info("Pipeline run triggered via API")

	c.JSON(http.StatusAccepted, models.RunPipelineResponse{
		RunID:  run.ID,
		Status: run.Status,
	})
}

// GetPipelineRun returns the status of one run
func GetPipelineRun(c middleware.Context) {
	runID := c.Param("id")

	run, ok := pipe.GetRun(runID)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, runStatus(run))
}

// ListPipelineRuns returns recent runs, newest first
func ListPipelineRuns(c middleware.Context) {
	runs := pipe.ListRuns()
	out := make([]models.PipelineRunStatus, 0, len(runs))
	for _, run := range runs {
		out = append(out, runStatus(run))
	}
	c.JSON(http.StatusOK, middleware.H{"runs": out})
}

func runStatus(run pipeline.Run) models.PipelineRunStatus {
	return models.PipelineRunStatus{
		RunID:       run.ID,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Curated:     run.Stats.ArticlesCurated,
		Rejected:    run.Stats.DraftsRejected,
		Posted:      run.Stats.PostsPublished,
		Failed:      run.Stats.PostsFailed,
		ErrorDetail: run.Error,
	}
}

// ListPosts returns recent posts with optional platform and status filters
func ListPosts(c middleware.Context) {
	platform := c.Query("platform")
	if platform != "" && !models.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid platform: " + platform})
		return
	}
	status := c.Query("status")
	if status != "" && !models.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid status: " + status})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	posts, err := st.GetPostHistory(c.Request.Context(), platform, status, limit)
	if err != nil {
		logger.WithError(err).Error("Failed to list posts")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	if posts == nil {
		posts = []models.PostHistory{}
	}
	c.JSON(http.StatusOK, middleware.H{"posts": posts})
}

// GetPostPerformance returns a post with its engagement metrics
func GetPostPerformance(c middleware.Context) {
	postID := c.Param("id")

	perf, err := st.GetPostPerformance(c.Request.Context(), postID)
	if err != nil {
		logger.WithError(err).WithField("post_id", postID).Error("Failed to load post performance")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	if perf == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "post not found"})
		return
	}
	c.JSON(http.StatusOK, perf)
}

// GetPlatformAnalytics returns aggregated engagement for one platform
func GetPlatformAnalytics(c middleware.Context) {
	platform := c.Param("platform")
	if !models.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid platform: " + platform})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	analytics, err := st.GetPlatformAnalytics(c.Request.Context(), platform, days)
	if err != nil {
		logger.WithError(err).WithField("platform", platform).Error("Failed to load analytics")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// ListSources returns recently curated content sources
func ListSources(c middleware.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	sources, err := st.ListSources(c.Request.Context(), limit)
	if err != nil {
		logger.WithError(err).Error("Failed to list sources")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	if sources == nil {
		sources = []models.ContentSource{}
	}
	c.JSON(http.StatusOK, middleware.H{"sources": sources})
}

// ListSafetyLogs returns recent safety check results
func ListSafetyLogs(c middleware.Context) {
	status := c.Query("status")
	if status != "" && status != models.SafetyPass && status != models.SafetyFail {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid status: " + status})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := st.ListSafetyLogs(c.Request.Context(), status, limit)
	if err != nil {
		logger.WithError(err).Error("Failed to list safety logs")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	if logs == nil {
		logs = []models.SafetyLog{}
	}
	c.JSON(http.StatusOK, middleware.H{"logs": logs})
}
