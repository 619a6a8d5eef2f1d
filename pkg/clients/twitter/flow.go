package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"herald/pkg/clients"
)

// Bearer token used by the web client for pre-auth endpoints
const webBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func (c *Client) activateGuestToken(ctx context.Context) error {
	resp, err := c.doPreAuth(ctx, http.MethodPost, "/1.1/guest/activate.json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}

	var result struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode guest token response: %w", err)
	}
	if result.GuestToken == "" {
		return fmt.Errorf("guest token response was empty")
	}
	c.guestToken = result.GuestToken
	return nil
}

func (c *Client) startLoginFlow(ctx context.Context) (string, error) {
	body := map[string]interface{}{
		"input_flow_data": map[string]interface{}{
			"flow_context": map[string]interface{}{
				"start_location": map[string]string{"location": "splash_screen"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := c.doPreAuth(ctx, http.MethodPost, "/1.1/onboarding/task.json?flow_name=login", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return decodeFlowToken(resp)
}

func (c *Client) advanceLoginFlow(ctx context.Context, flowToken string, subtask map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"flow_token":     flowToken,
		"subtask_inputs": []map[string]interface{}{subtask},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := c.doPreAuth(ctx, http.MethodPost, "/1.1/onboarding/task.json", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return decodeFlowToken(resp)
}

func decodeFlowToken(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}

	var result struct {
		FlowToken string `json:"flow_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode flow response: %w", err)
	}
	if result.FlowToken == "" {
		return "", fmt.Errorf("flow response carried no flow token")
	}
	return result.FlowToken, nil
}

func (c *Client) doPreAuth(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	return c.execute(ctx, func(ctx context.Context) (*http.Request, error) {
		var body *bytes.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		} else {
			body = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+webBearerToken)
		if c.guestToken != "" {
			req.Header.Set("X-Guest-Token", c.guestToken)
		}
		return req, nil
	})
}

func (c *Client) doAuthed(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	return c.execute(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+webBearerToken)
		req.Header.Set("X-Csrf-Token", c.csrfToken)
		return req, nil
	})
}

func (c *Client) execute(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
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
