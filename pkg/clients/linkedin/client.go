package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"herald/pkg/clients"
)

// MaxPostLength is the platform hard limit for a share
const MaxPostLength = 3000

// ErrContentTooLong is returned when a post exceeds MaxPostLength
var ErrContentTooLong = fmt.Errorf("linkedin post exceeds %d characters", MaxPostLength)

// APIError is returned when LinkedIn responds with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin returned status %d: %s", e.StatusCode, e.Body)
}

// Session holds the voyager cookie pair. JSESSIONID doubles as the csrf token.
type Session struct {
	JSESSIONID string
	LiAt       string
}

type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool

	mu      sync.Mutex
	session Session
}

type Option func(*Client)

func NewClient(session Session, opts ...Option) *Client {
	// Stray quotes around JSESSIONID are a common copy-paste artifact
	session.JSESSIONID = strings.ReplaceAll(strings.TrimSpace(session.JSESSIONID), `"`, "")
	session.LiAt = strings.TrimSpace(session.LiAt)

	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      "https://www.linkedin.com",
		client:       &http.Client{Timeout: 30 * time.Second, Transport: clients.DefaultTransport()},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
		session:      session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// Share posts text to the member's feed via the voyager normShares endpoint
// and returns the share urn when the API provides one.
func (c *Client) Share(ctx context.Context, text string) (string, error) {
	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("empty post content")
	}
	if len([]rune(text)) > MaxPostLength {
		return "", ErrContentTooLong
	}

	payload := map[string]interface{}{
		"visibleToConnectionsOnly":  false,
		"externalAudienceProviders": []string{},
		"commentaryV2": map[string]interface{}{
			"text":       text,
			"attributes": []string{},
		},
		"origin":                 "FEED",
		"allowedCommentersScope": "ALL",
		"postState":              "PUBLISHED",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal share payload: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/voyager/api/contentcreation/normShares", body)
	if err != nil {
		return "", fmt.Errorf("linkedin share request failed: %w", err)
	}
	defer resp.Body.Close()

	// Voyager rotates session cookies mid-flight
	c.refreshSession(resp.Header)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}

	var result struct {
		URN string `json:"urn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Some responses are normalized-json envelopes without a urn field
		return "", nil
	}
	return result.URN, nil
}

// SocialCounts holds public engagement counters for a share
type SocialCounts struct {
	Likes    int64 `json:"numLikes"`
	Comments int64 `json:"numComments"`
	Shares   int64 `json:"numShares"`
	Views    int64 `json:"numViews"`
}

// GetSocialCounts fetches engagement counters for a share urn
func (c *Client) GetSocialCounts(ctx context.Context, urn string) (*SocialCounts, error) {
	if urn == "" {
		return nil, fmt.Errorf("share urn is required")
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/voyager/api/feed/social/"+urn, nil)
	if err != nil {
		return nil, fmt.Errorf("linkedin social counts request failed: %w", err)
	}
	defer resp.Body.Close()

	c.refreshSession(resp.Header)

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}

	var counts SocialCounts
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return nil, fmt.Errorf("failed to decode social counts: %w", err)
	}
	return &counts, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		session := c.session
		c.mu.Unlock()

		req.Header.Set("Accept", "application/vnd.linkedin.normalized+json+2.1")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		req.Header.Set("Csrf-Token", session.JSESSIONID)
		req.Header.Set("Origin", c.baseURL)
		req.Header.Set("Referer", c.baseURL+"/feed/")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Cookie", fmt.Sprintf(`JSESSIONID="%s"; li_at=%s`, session.JSESSIONID, session.LiAt))
		return req, nil
	}

	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

// refreshSession picks up rotated cookies from a Set-Cookie header
func (c *Client) refreshSession(headers http.Header) {
	setCookie := strings.Join(headers.Values("Set-Cookie"), "; ")
	if setCookie == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, part := range strings.Split(setCookie, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "JSESSIONID="); ok {
			if value = strings.ReplaceAll(value, `"`, ""); value != "" {
				c.session.JSESSIONID = value
			}
		}
		if value, ok := strings.CutPrefix(part, "li_at="); ok && value != "" {
			c.session.LiAt = value
		}
	}
}
