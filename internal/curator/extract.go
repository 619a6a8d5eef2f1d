package curator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"herald/pkg/clients"
)

// maxExtractRunes caps how much article body is carried into prompts
const maxExtractRunes = 5000

// Extractor pulls readable article text out of a web page
type Extractor struct {
	client *http.Client
}

// NewExtractor creates an extractor with sane connection limits
func NewExtractor() *Extractor {
	return &Extractor{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: clients.DefaultTransport(),
		},
	}
}

// Extract fetches a page and returns its main text content, preferring
// article and main containers over the raw body. Scripts, styles and nav
// chrome are stripped.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "herald/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside, form, iframe").Remove()

	text := ""
	for _, selector := range []string{"article", "main", "[role=main]", "body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			text = sel.Text()
			if len(strings.TrimSpace(text)) > 200 {
				break
			}
		}
	}

	text = collapseWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("no readable text found")
	}

	runes := []rune(text)
	if len(runes) > maxExtractRunes {
		text = string(runes[:maxExtractRunes])
	}
	return text, nil
}

// collapseWhitespace joins paragraphs while squeezing runs of blank space
func collapseWhitespace(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
