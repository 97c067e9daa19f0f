// Package webhook relays tool calls to n8n workflows exposed as webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is a non-2xx webhook answer.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client calls n8n webhooks with a shared bearer token.
type Client struct {
	token      string
	httpClient *http.Client
}

func NewClient(token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get calls a webhook without a body.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	return c.call(ctx, http.MethodGet, url, nil)
}

// Post sends payload as JSON.
func (c *Client) Post(ctx context.Context, url string, payload interface{}) (string, error) {
	return c.call(ctx, http.MethodPost, url, payload)
}

// call returns the response pretty-printed when it is JSON, and as text
// otherwise.
func (c *Client) call(ctx context.Context, method, url string, payload interface{}) (string, error) {
	if url == "" {
		return "", fmt.Errorf("webhook url is not configured")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw)), nil
	}
	return pretty.String(), nil
}
