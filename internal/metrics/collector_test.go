package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"herald/internal/store"
	"herald/pkg/clients/twitter"
	"herald/pkg/models"
)

type fakeReader struct {
	snapshot models.MetricsSnapshot
	fail     error
	reads    []string
}

func (f *fakeReader) Read(ctx context.Context, id string) (models.MetricsSnapshot, models.JSONB, error) {
	f.reads = append(f.reads, id)
	if f.fail != nil {
		return models.MetricsSnapshot{}, nil, f.fail
	}
	return f.snapshot, models.JSONB{"raw": true}, nil
}

func postedRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "platform", "content", "content_hash", "status",
		"platform_post_id", "error_message", "scheduled_for", "posted_at", "created_at", "updated_at",
	})
	now := time.Now()
	for i, id := range ids {
		ext := fmt.Sprintf("ext-%d", i+1)
		rows.AddRow(id, nil, models.PlatformTwitter, "content", "hash", models.StatusPosted,
			ext, nil, nil, now, now, now)
	}
	return rows
}

func newCollector(t *testing.T, reader Reader) (*Collector, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	c := &Collector{
		store:    store.New(db, logger),
		readers:  map[string]Reader{models.PlatformTwitter: reader},
		logger:   logger,
		lookback: 7 * 24 * time.Hour,
	}
	return c, mock, func() { db.Close() }
}

func TestCollectOnce_UpdatesMetrics(t *testing.T) {
	reader := &fakeReader{snapshot: models.MetricsSnapshot{Likes: 10, Views: 500}}
	c, mock, done := newCollector(t, reader)
	defer done()

	mock.ExpectQuery("FROM post_history").
		WillReturnRows(postedRows("post-1", "post-2"))
	mock.ExpectExec("INSERT INTO content_metrics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO content_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := c.CollectOnce(context.Background())
	if err != nil {
		t.Fatalf("CollectOnce returned error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updates, got %d", updated)
	}
	if len(reader.reads) != 2 {
		t.Fatalf("expected 2 reads, got %d", len(reader.reads))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCollectOnce_ReaderFailureSkipsPost(t *testing.T) {
	reader := &fakeReader{fail: fmt.Errorf("api limit")}
	c, mock, done := newCollector(t, reader)
	defer done()

	mock.ExpectQuery("FROM post_history").
		WillReturnRows(postedRows("post-1"))

	updated, err := c.CollectOnce(context.Background())
	if err != nil {
		t.Fatalf("CollectOnce returned error: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected 0 updates, got %d", updated)
	}
}

func TestCollectOnce_NoReaderForPlatform(t *testing.T) {
	c, mock, done := newCollector(t, &fakeReader{})
	defer done()
	c.readers = map[string]Reader{}

	mock.ExpectQuery("FROM post_history").
		WillReturnRows(postedRows("post-1"))

	updated, err := c.CollectOnce(context.Background())
	if err != nil {
		t.Fatalf("CollectOnce returned error: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected 0 updates, got %d", updated)
	}
}

type fakeTweetMetricsClient struct {
	metrics *twitter.TweetMetrics
}

func (f *fakeTweetMetricsClient) GetTweetMetrics(ctx context.Context, tweetID string) (*twitter.TweetMetrics, error) {
	return f.metrics, nil
}

func TestTwitterReader_MapsRetweetsToShares(t *testing.T) {
	reader := &TwitterReader{Client: &fakeTweetMetricsClient{
		metrics: &twitter.TweetMetrics{Likes: 12, Retweets: 7, Replies: 3, Views: 900},
	}}

	snapshot, platform, err := reader.Read(context.Background(), "123")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if snapshot.Shares != 7 || snapshot.Comments != 3 {
		t.Fatalf("unexpected mapping: %+v", snapshot)
	}
	if platform["retweet_count"] != int64(7) {
		t.Fatalf("unexpected platform metrics: %+v", platform)
	}
}
