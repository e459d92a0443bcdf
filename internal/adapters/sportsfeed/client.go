// Package sportsfeed is the adapter (component C2) for the two
// independent sports-data sources: a live scoreboard feed and a
// sportsbook-odds feed. Both are plain JSON HTTP APIs polled on a fixed
// cadence by internal/core/aggregator, not streamed.
package sportsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nbapaper/engine/internal/telemetry"
)

var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Client is a bounded-retry JSON HTTP client shared by the scoreboard
// and odds feeds.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// getJSON performs a GET with up to len(retryDelays)+1 attempts, backing
// off 1s/2s/4s between them. A 429 carrying a Retry-After header is waited
// out first, and the regular backoff delay follows it.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := c.tryOnce(ctx, path, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= len(retryDelays) {
			break
		}
		telemetry.Warnf("sportsfeed: %s attempt %d failed: %v, retrying", path, attempt+1, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
	return fmt.Errorf("sportsfeed: %s failed after %d attempts: %w", path, len(retryDelays)+1, lastErr)
}

func (c *Client) tryOnce(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			time.Sleep(d)
		}
		return fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	telemetry.Debugf("sportsfeed: GET %s -> %d (%s)", path, resp.StatusCode, time.Since(start))
	return nil
}

func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
