package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"herald/internal/pipeline"
	"herald/internal/store"
	"herald/pkg/models"
)

func setupTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	Init(store.New(db, logger), pipeline.New(pipeline.Deps{Logger: logger}), logger)

	router := gin.New()
	router.GET("/api/pipeline/runs/:id", GetPipelineRun)
	router.GET("/api/posts", ListPosts)
	router.GET("/api/posts/:id/performance", GetPostPerformance)
	router.GET("/api/analytics/:platform", GetPlatformAnalytics)
	router.GET("/api/sources", ListSources)
	router.GET("/api/safety/logs", ListSafetyLogs)

	return mock, router, func() { db.Close() }
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListPosts(t *testing.T) {
	mock, router, done := setupTest(t)
	defer done()

	mock.ExpectQuery("FROM post_history").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_id", "platform", "content", "content_hash", "status",
			"platform_post_id", "error_message", "scheduled_for", "posted_at", "created_at", "updated_at",
		}).AddRow("post-1", nil, "twitter", "hello", "hash", "posted", nil, nil, nil, nil, time.Now(), time.Now()))

	w := doRequest(router, http.MethodGet, "/api/posts?platform=twitter")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Posts []models.PostHistory `json:"posts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Posts) != 1 || resp.Posts[0].ID != "post-1" {
		t.Fatalf("unexpected posts: %+v", resp.Posts)
	}
}

func TestListPosts_InvalidPlatform(t *testing.T) {
	_, router, done := setupTest(t)
	defer done()

	w := doRequest(router, http.MethodGet, "/api/posts?platform=myspace")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListPosts_EmptyIsArray(t *testing.T) {
	mock, router, done := setupTest(t)
	defer done()

	mock.ExpectQuery("FROM post_history").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_id", "platform", "content", "content_hash", "status",
			"platform_post_id", "error_message", "scheduled_for", "posted_at", "created_at", "updated_at",
		}))

	w := doRequest(router, http.MethodGet, "/api/posts")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(resp["posts"]) != "[]" {
		t.Fatalf("expected empty array, got %s", resp["posts"])
	}
}

func TestGetPostPerformance_NotFound(t *testing.T) {
	mock, router, done := setupTest(t)
	defer done()

	mock.ExpectQuery("FROM post_history p").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(router, http.MethodGet, "/api/posts/missing/performance")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetPlatformAnalytics(t *testing.T) {
	mock, router, done := setupTest(t)
	defer done()

	mock.ExpectQuery("FROM post_history p").
		WillReturnRows(sqlmock.NewRows([]string{
			"count", "posted", "failed", "likes", "comments", "shares", "views", "avg_rate",
		}).AddRow(5, 4, 1, 100, 20, 10, 5000, 0.026))

	w := doRequest(router, http.MethodGet, "/api/analytics/twitter?days=7")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var analytics models.PlatformAnalytics
	if err := json.Unmarshal(w.Body.Bytes(), &analytics); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if analytics.PostedCount != 4 || analytics.PeriodDays != 7 {
		t.Fatalf("unexpected analytics: %+v", analytics)
	}
}

func TestGetPlatformAnalytics_InvalidPlatform(t *testing.T) {
	_, router, done := setupTest(t)
	defer done()

	w := doRequest(router, http.MethodGet, "/api/analytics/tiktok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPipelineRun_NotFound(t *testing.T) {
	_, router, done := setupTest(t)
	defer done()

	w := doRequest(router, http.MethodGet, "/api/pipeline/runs/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListSafetyLogs_InvalidStatus(t *testing.T) {
	_, router, done := setupTest(t)
	defer done()

	w := doRequest(router, http.MethodGet, "/api/safety/logs?status=maybe")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListSafetyLogs(t *testing.T) {
	mock, router, done := setupTest(t)
	defer done()

	mock.ExpectQuery("FROM safety_logs").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_id", "post_id", "check_type", "status", "score", "issues", "checked_at",
		}).AddRow("log-1", nil, nil, "moderation", "fail", 0.2, []byte(`{"issues":["spam"]}`), time.Now()))

	w := doRequest(router, http.MethodGet, "/api/safety/logs?status=fail")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
