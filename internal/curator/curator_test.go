package curator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"herald/internal/store"
	"herald/pkg/llm"
	"herald/pkg/models"
)

type fakeStream struct {
	chunks []string
	i      int
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if s.i >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := llm.Chunk{Content: s.chunks[s.i]}
	s.i++
	return c, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeProvider struct {
	response string
	requests []llm.Request
}

func (p *fakeProvider) Complete(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.requests = append(p.requests, req)
	return &fakeStream{chunks: []string{p.response}}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestScoreArticle_KeywordAndRecency(t *testing.T) {
	now := time.Now()

	hot := models.Article{
		Title:       "OpenAI ships new LLM research",
		Summary:     "machine learning advances",
		PublishedAt: now.Add(-1 * time.Hour),
	}
	stale := models.Article{
		Title:       "Local bakery reopens",
		Summary:     "bread is back",
		PublishedAt: now.Add(-72 * time.Hour),
	}

	if scoreArticle(hot, now) <= scoreArticle(stale, now) {
		t.Fatal("expected AI article to outrank unrelated one")
	}
}

func TestRankArticles_OrdersByScore(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		{URL: "a", Title: "Gardening tips", PublishedAt: now.Add(-90 * time.Hour)},
		{URL: "b", Title: "AI startup raises funding", PublishedAt: now.Add(-2 * time.Hour)},
		{URL: "c", Title: "New programming language release", PublishedAt: now.Add(-20 * time.Hour)},
	}

	ranked := rankArticles(articles, now)
	if ranked[0].URL != "b" {
		t.Fatalf("expected AI article first, got %s", ranked[0].URL)
	}
	if ranked[2].URL != "a" {
		t.Fatalf("expected unrelated article last, got %s", ranked[2].URL)
	}
	// input untouched
	if articles[0].URL != "a" {
		t.Fatal("rankArticles mutated its input")
	}
}

func TestExtract_PrefersArticleTag(t *testing.T) {
	body := `<html><head><script>var x = 1;</script></head><body>
		<nav>Menu Menu Menu</nav>
		<article>` + strings.Repeat("The important story text. ", 20) + `</article>
		<footer>Copyright</footer>
	</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	text, err := NewExtractor().Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !strings.Contains(text, "The important story text.") {
		t.Fatalf("expected article text, got %q", text)
	}
	if strings.Contains(text, "Menu") || strings.Contains(text, "Copyright") {
		t.Fatalf("expected chrome to be stripped, got %q", text)
	}
}

func TestExtract_CapsLength(t *testing.T) {
	long := strings.Repeat("word ", 3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article>" + long + "</article></body></html>"))
	}))
	defer server.Close()

	text, err := NewExtractor().Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len([]rune(text)) > maxExtractRunes {
		t.Fatalf("extract exceeds cap: %d runes", len([]rune(text)))
	}
}

func TestExtract_ErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := NewExtractor().Extract(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  hello\n\n\tworld   again \n"
	if got := collapseWhitespace(in); got != "hello world again" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestDedup_DropsSeenAndBatchDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	c := &Curator{
		store:       store.New(db, quietLogger()),
		logger:      quietLogger(),
		dedupWindow: 30 * 24 * time.Hour,
	}

	articles := []models.Article{
		{URL: "https://example.com/new", Title: "New"},
		{URL: "https://example.com/seen", Title: "Seen"},
		{URL: "https://example.com/new", Title: "New"}, // batch duplicate
	}

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	fresh, err := c.dedup(context.Background(), articles)
	if err != nil {
		t.Fatalf("dedup returned error: %v", err)
	}
	if len(fresh) != 1 || fresh[0].URL != "https://example.com/new" {
		t.Fatalf("unexpected fresh set: %+v", fresh)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuildTrends_UsesSummaries(t *testing.T) {
	provider := &fakeProvider{response: "Theme: AI is eating software."}
	c := &Curator{provider: provider, logger: quietLogger()}

	items := []CuratedItem{
		{Article: models.Article{Title: "Story One", Source: "Wired"}, Summary: "Summary one."},
		{Article: models.Article{Title: "Story Two", Source: "Verge"}, Summary: "Summary two."},
	}

	trends, err := c.buildTrends(context.Background(), items)
	if err != nil {
		t.Fatalf("buildTrends returned error: %v", err)
	}
	if trends != "Theme: AI is eating software." {
		t.Fatalf("unexpected trends: %q", trends)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(provider.requests))
	}
	prompt := provider.requests[0].Messages[1].Content
	if !strings.Contains(prompt, "Story One") || !strings.Contains(prompt, "Summary two.") {
		t.Fatalf("prompt missing item context: %q", prompt)
	}
}

func TestFallbackTrends(t *testing.T) {
	items := []CuratedItem{
		{Article: models.Article{Title: "T1"}, Summary: "S1"},
	}
	out := fallbackTrends(items)
	if !strings.Contains(out, "T1") || !strings.Contains(out, "S1") {
		t.Fatalf("unexpected fallback: %q", out)
	}
}
