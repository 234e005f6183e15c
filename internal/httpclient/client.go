// Package httpclient is the shared outbound HTTP layer for all source
// adapters: bounded retry with exponential backoff, polite per-client rate
// limiting and a typed error taxonomy the adapters pattern-match on.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited signals HTTP 429 after retries; adapters translate it
	// into an empty result instead of failing the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound signals HTTP 404; get-by-id calls translate it into an
	// absent record.
	ErrNotFound = errors.New("not found")
	// ErrBadPayload signals an unparseable response body.
	ErrBadPayload = errors.New("bad payload")
)

// StatusError is any other non-2xx response; it propagates so the circuit
// breaker can observe hard failures.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	baseBackoff     = 1 * time.Second
	maxBackoff      = 10 * time.Second
)

// Client wraps http.Client with retry and politeness for one adapter.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	attempts  int
	baseDelay time.Duration
}

// New builds a client with the default 30s timeout, 3 attempts and a
// 3-requests-per-second polite limit.
func New(userAgent string) *Client {
	return &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Every(time.Second/3), 1),
		userAgent: userAgent,
		attempts:  defaultAttempts,
		baseDelay: baseBackoff,
	}
}

// GetBytes fetches a URL with retry. Transient failures (network errors,
// 5xx, 408, 429) back off exponentially between attempts; 429 surviving all
// attempts becomes ErrRateLimited, 404 becomes ErrNotFound immediately.
func (c *Client) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoffDelay(attempt)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request %s: %w", url, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("read body: %w", readErr)
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: url}
			continue
		default:
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
		}
	}
	return nil, lastErr
}

// GetJSON fetches and decodes a JSON response. Decode failures come back as
// ErrBadPayload so adapters can drop the source for this request.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	body, err := c.GetBytes(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
