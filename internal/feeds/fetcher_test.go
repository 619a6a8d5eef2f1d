package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>First Article</title>
      <link>https://example.com/first</link>
      <description>Something happened</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second Article</title>
      <link>https://example.com/second</link>
      <description>Something else happened</description>
      <pubDate>Tue, 25 Aug 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestFetchAll_RSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	reg := &Registry{feeds: []Feed{{Name: "Test Feed", URL: server.URL, Category: "tech"}}}
	fetcher := NewFetcher(reg, testLogger())

	articles, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	// newest first
	if articles[0].Title != "Second Article" {
		t.Fatalf("expected newest article first, got %q", articles[0].Title)
	}
	if articles[0].Source != "Test Feed" || articles[0].SourceType != "rss" {
		t.Fatalf("unexpected source metadata: %+v", articles[0])
	}
}

func TestFetchAll_SkipsDeadFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer good.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dead.Close()

	reg := &Registry{feeds: []Feed{
		{Name: "Dead", URL: dead.URL},
		{Name: "Good", URL: good.URL, Category: "tech"},
	}}
	fetcher := NewFetcher(reg, testLogger())

	articles, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected articles from surviving feed, got %d", len(articles))
	}
}

func TestFetchAll_AllDeadReturnsError(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	reg := &Registry{feeds: []Feed{{Name: "Dead", URL: dead.URL}}}
	fetcher := NewFetcher(reg, testLogger())

	if _, err := fetcher.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error when every feed fails")
	}
}

func TestFetchAll_RespectsMaxPerFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	reg := &Registry{feeds: []Feed{{Name: "Test Feed", URL: server.URL}}}
	fetcher := NewFetcher(reg, testLogger(), WithMaxPerFeed(1))

	articles, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article with cap, got %d", len(articles))
	}
}
