package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"herald/pkg/clients"
)

// MaxTweetLength is the platform hard limit per tweet
const MaxTweetLength = 280

// APIError is returned when the Twitter API responds with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter returned status %d: %s", e.StatusCode, e.Body)
}

// Credentials holds the account login details
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Tweet is a posted tweet reference
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Client struct {
	baseURL      string
	creds        Credentials
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool

	mu         sync.Mutex
	guestToken string
	csrfToken  string
	loggedIn   bool
}

type Option func(*Client)

func NewClient(creds Credentials, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL: "https://api.twitter.com",
		creds:   creds,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: clients.DefaultTransport(),
			Jar:       jar,
		},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
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

// Login authenticates with the account credentials. It runs the onboarding
// flow: guest token activation, then the login task sequence. Safe to call
// more than once; subsequent calls are no-ops while the session is live.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	if c.creds.Username == "" || c.creds.Email == "" || c.creds.Password == "" {
		return fmt.Errorf("missing twitter credentials")
	}

	if err := c.activateGuestToken(ctx); err != nil {
		return fmt.Errorf("guest token activation failed: %w", err)
	}

	flowToken, err := c.startLoginFlow(ctx)
	if err != nil {
		return fmt.Errorf("login flow start failed: %w", err)
	}

	steps := []map[string]interface{}{
		{
			"subtask_id": "LoginEnterUserIdentifierSSO",
			"settings_list": map[string]interface{}{
				"setting_responses": []map[string]interface{}{
					{
						"key":           "user_identifier",
						"response_data": map[string]interface{}{"text_data": map[string]string{"result": c.creds.Username}},
					},
				},
				"link": "next_link",
			},
		},
		{
			"subtask_id": "LoginEnterPassword",
			"enter_password": map[string]interface{}{
				"password": c.creds.Password,
				"link":     "next_link",
			},
		},
		{
			"subtask_id": "AccountDuplicationCheck",
			"check_logged_in_account": map[string]interface{}{
				"link": "AccountDuplicationCheck_false",
			},
		},
	}

	for _, step := range steps {
		flowToken, err = c.advanceLoginFlow(ctx, flowToken, step)
		if err != nil {
			return fmt.Errorf("login flow step %v failed: %w", step["subtask_id"], err)
		}
	}

	// ct0 doubles as the csrf token on authenticated calls
	for _, cookie := range c.client.Jar.Cookies(mustParseURL(c.baseURL)) {
		if cookie.Name == "ct0" {
			c.csrfToken = cookie.Value
		}
	}
	if c.csrfToken == "" {
		return fmt.Errorf("login completed but no csrf cookie was issued")
	}

	c.loggedIn = true
	return nil
}

// CreateTweet posts a single tweet. inReplyTo chains the tweet into a thread
// when non-empty.
func (c *Client) CreateTweet(ctx context.Context, text, inReplyTo string) (*Tweet, error) {
	if text = strings.TrimSpace(text); text == "" {
		return nil, fmt.Errorf("empty tweet content")
	}
	if len([]rune(text)) > MaxTweetLength {
		return nil, fmt.Errorf("tweet exceeds %d characters", MaxTweetLength)
	}

	variables := map[string]interface{}{
		"tweet_text": text,
	}
	if inReplyTo != "" {
		variables["reply"] = map[string]interface{}{
			"in_reply_to_tweet_id": inReplyTo,
		}
	}
	body := map[string]interface{}{"variables": variables}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tweet payload: %w", err)
	}

	resp, err := c.doAuthed(ctx, http.MethodPost, "/graphql/CreateTweet", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}

	var result struct {
		Data struct {
			CreateTweet struct {
				TweetResults struct {
					Result struct {
						RestID string `json:"rest_id"`
					} `json:"result"`
				} `json:"tweet_results"`
			} `json:"create_tweet"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode create tweet response: %w", err)
	}

	return &Tweet{ID: result.Data.CreateTweet.TweetResults.Result.RestID, Text: text}, nil
}

// PostThread posts tweets in order, chaining each as a reply to the previous.
// Returns the ids of every posted tweet; on mid-thread failure the already
// posted ids are returned alongside the error.
func (c *Client) PostThread(ctx context.Context, tweets []string) ([]string, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	var ids []string
	var previous string
	for i, text := range tweets {
		tweet, err := c.CreateTweet(ctx, text, previous)
		if err != nil {
			return ids, fmt.Errorf("failed to post tweet %d/%d: %w", i+1, len(tweets), err)
		}
		ids = append(ids, tweet.ID)
		previous = tweet.ID
	}
	return ids, nil
}

// TweetMetrics holds public engagement counters for a tweet
type TweetMetrics struct {
	Likes    int64 `json:"favorite_count"`
	Retweets int64 `json:"retweet_count"`
	Replies  int64 `json:"reply_count"`
	Views    int64 `json:"view_count"`
}

// GetTweetMetrics fetches public engagement counters for a tweet id
func (c *Client) GetTweetMetrics(ctx context.Context, tweetID string) (*TweetMetrics, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	resp, err := c.doAuthed(ctx, http.MethodGet, "/graphql/TweetResultByRestId?id="+tweetID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}

	var result struct {
		Data struct {
			TweetResult struct {
				Result struct {
					Legacy TweetMetrics `json:"legacy"`
					Views  struct {
						Count string `json:"count"`
					} `json:"views"`
				} `json:"result"`
			} `json:"tweetResult"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode tweet metrics response: %w", err)
	}

	metrics := result.Data.TweetResult.Result.Legacy
	if count := result.Data.TweetResult.Result.Views.Count; count != "" {
		_, _ = fmt.Sscanf(count, "%d", &metrics.Views)
	}
	return &metrics, nil
}
