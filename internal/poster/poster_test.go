package poster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"herald/internal/store"
	"herald/pkg/models"
)

type fakePublisher struct {
	posted []string
	fail   error
}

func (f *fakePublisher) Publish(ctx context.Context, content string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.posted = append(f.posted, content)
	return fmt.Sprintf("ext-%d", len(f.posted)), nil
}

func newTestPoster(t *testing.T, pub Publisher) (*Poster, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	p := &Poster{
		store:      store.New(db, logger),
		publishers: map[string]Publisher{models.PlatformTwitter: pub},
		limiters: map[string]*rate.Limiter{
			models.PlatformTwitter: rate.NewLimiter(rate.Every(15*time.Minute), 1),
		},
		logger: logger,
	}
	return p, mock, func() { db.Close() }
}

func TestPublishPost_Success(t *testing.T) {
	pub := &fakePublisher{}
	p, mock, done := newTestPoster(t, pub)
	defer done()

	mock.ExpectExec("UPDATE post_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	post := models.PostHistory{
		ID:       "post-1",
		Platform: models.PlatformTwitter,
		Content:  "Hello world",
		Status:   models.StatusGenerated,
	}
	if err := p.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("PublishPost returned error: %v", err)
	}
	if len(pub.posted) != 1 {
		t.Fatalf("expected 1 publish call, got %d", len(pub.posted))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishPost_FailureMarksFailed(t *testing.T) {
	pub := &fakePublisher{fail: fmt.Errorf("platform down")}
	p, mock, done := newTestPoster(t, pub)
	defer done()

	mock.ExpectExec("UPDATE post_history").
		WithArgs(models.StatusFailed, sqlmock.AnyArg(), "post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	post := models.PostHistory{
		ID:       "post-1",
		Platform: models.PlatformTwitter,
		Content:  "Hello world",
		Status:   models.StatusGenerated,
	}
	if err := p.PublishPost(context.Background(), post); err == nil {
		t.Fatal("expected publish error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishPost_RateLimitDefers(t *testing.T) {
	pub := &fakePublisher{}
	p, mock, done := newTestPoster(t, pub)
	defer done()

	// first post consumes the burst
	mock.ExpectExec("UPDATE post_history").WillReturnResult(sqlmock.NewResult(0, 1))
	// second post is deferred to scheduled
	mock.ExpectExec("UPDATE post_history").
		WithArgs(models.StatusScheduled, sqlmock.AnyArg(), "post-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	first := models.PostHistory{ID: "post-1", Platform: models.PlatformTwitter, Content: "one", Status: models.StatusGenerated}
	second := models.PostHistory{ID: "post-2", Platform: models.PlatformTwitter, Content: "two", Status: models.StatusGenerated}

	if err := p.PublishPost(context.Background(), first); err != nil {
		t.Fatalf("first publish returned error: %v", err)
	}
	if err := p.PublishPost(context.Background(), second); err != nil {
		t.Fatalf("deferred publish returned error: %v", err)
	}
	if len(pub.posted) != 1 {
		t.Fatalf("expected only first post to go out, got %d", len(pub.posted))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishPost_RejectsWrongStatus(t *testing.T) {
	p, _, done := newTestPoster(t, &fakePublisher{})
	defer done()

	post := models.PostHistory{ID: "post-1", Platform: models.PlatformTwitter, Status: models.StatusPosted}
	if err := p.PublishPost(context.Background(), post); err == nil {
		t.Fatal("expected error for already posted post")
	}
}

func TestPublishPost_DryRun(t *testing.T) {
	pub := &fakePublisher{}
	p, mock, done := newTestPoster(t, pub)
	defer done()
	p.dryRun = true

	mock.ExpectExec("UPDATE post_history").WillReturnResult(sqlmock.NewResult(0, 1))

	post := models.PostHistory{ID: "post-1", Platform: models.PlatformTwitter, Content: "draft", Status: models.StatusGenerated}
	if err := p.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("dry run publish returned error: %v", err)
	}
	if len(pub.posted) != 0 {
		t.Fatal("dry run must not hit the platform")
	}
}

func TestPublishPost_NoPublisherRunsDry(t *testing.T) {
	p, mock, done := newTestPoster(t, &fakePublisher{})
	defer done()
	// linkedin has a limiter but no publisher
	p.limiters[models.PlatformLinkedIn] = rate.NewLimiter(rate.Every(30*time.Minute), 1)

	mock.ExpectExec("UPDATE post_history").
		WithArgs(models.StatusPosted, "dry-run-post-1", nil, "post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	post := models.PostHistory{ID: "post-1", Platform: models.PlatformLinkedIn, Content: "draft", Status: models.StatusGenerated}
	if err := p.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish without publisher returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishPending_DrainsScheduledPosts(t *testing.T) {
	pub := &fakePublisher{}
	p, mock, done := newTestPoster(t, pub)
	defer done()

	now := time.Now()
	pending := sqlmock.NewRows([]string{
		"id", "source_id", "platform", "content", "content_hash", "status",
		"platform_post_id", "error_message", "scheduled_for", "posted_at", "created_at", "updated_at",
	}).AddRow("post-1", nil, models.PlatformTwitter, "deferred from last cycle", "hash-1", models.StatusScheduled,
		nil, nil, nil, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM post_history").WillReturnRows(pending)
	mock.ExpectExec("UPDATE post_history").
		WithArgs(models.StatusPosted, "ext-1", nil, "post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	published, err := p.PublishPending(context.Background())
	if err != nil {
		t.Fatalf("PublishPending returned error: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 published post, got %d", published)
	}
	if len(pub.posted) != 1 {
		t.Fatalf("expected the scheduled post to reach the platform, got %d calls", len(pub.posted))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type fakeThreadClient struct {
	threads [][]string
	ids     []string
	fail    error
}

func (f *fakeThreadClient) PostThread(ctx context.Context, tweets []string) ([]string, error) {
	f.threads = append(f.threads, tweets)
	return f.ids, f.fail
}

func TestTwitterPublisher_SplitsThread(t *testing.T) {
	client := &fakeThreadClient{ids: []string{"111", "222"}}
	pub := &TwitterPublisher{Client: client}

	id, err := pub.Publish(context.Background(), "First\n[TWEET]\nSecond")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "111" {
		t.Fatalf("expected head tweet id, got %s", id)
	}
	if len(client.threads) != 1 || len(client.threads[0]) != 2 {
		t.Fatalf("unexpected thread split: %+v", client.threads)
	}
}

func TestTwitterPublisher_PartialThreadKeepsHead(t *testing.T) {
	client := &fakeThreadClient{ids: []string{"111"}, fail: fmt.Errorf("second tweet rejected")}
	pub := &TwitterPublisher{Client: client}

	id, err := pub.Publish(context.Background(), "First\n[TWEET]\nSecond")
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if id != "111" {
		t.Fatalf("expected head tweet id, got %s", id)
	}
}

func TestTwitterPublisher_TotalFailure(t *testing.T) {
	client := &fakeThreadClient{fail: fmt.Errorf("login expired")}
	pub := &TwitterPublisher{Client: client}

	if _, err := pub.Publish(context.Background(), "Only tweet"); err == nil {
		t.Fatal("expected error when nothing was posted")
	}
}
