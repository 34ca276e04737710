package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/manav03panchal/couponvault/internal/config"
)

const userAgent = "Couponvault/1.0"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient posts webhook payloads, retrying rate limits, server errors and
// transport failures.
type HTTPClient struct {
	client     *http.Client
	attempts   int
	retryDelay []time.Duration
}

// NewHTTPClient creates a client from config.Global.HTTP.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWith(config.Global.HTTP)
}

// NewHTTPClientWith creates a client from cfg. MaxRetries is the total number
// of attempts; attempt i waits RetryDelays[i] first (the last delay repeats).
func NewHTTPClientWith(cfg config.HTTPConfig) *HTTPClient {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPClient{
		client:     &http.Client{Timeout: cfg.Timeout},
		attempts:   attempts,
		retryDelay: cfg.RetryDelays,
	}
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// Retryable reports whether a later attempt could succeed.
func (r *SendResult) Retryable() bool {
	if r.Error == nil {
		return false
	}
	return r.StatusCode == 0 || r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500
}

func (c *HTTPClient) delay(attempt int) time.Duration {
	if len(c.retryDelay) == 0 {
		return 0
	}
	if attempt >= len(c.retryDelay) {
		return c.retryDelay[len(c.retryDelay)-1]
	}
	return c.retryDelay[attempt]
}

// Send POSTs body to url.
func (c *HTTPClient) Send(ctx context.Context, url, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	for attempt := 0; attempt < c.attempts; attempt++ {
		result.Attempts = attempt + 1

		if d := c.delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				result.Error = ctx.Err()
				return result
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			result.Error = fmt.Errorf("failed to create request: %w", err)
			return result
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			result.StatusCode = 0
			result.Error = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				return result
			}
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		result.StatusCode = resp.StatusCode

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			result.Error = nil
			return result
		case resp.StatusCode == http.StatusTooManyRequests:
			result.Error = fmt.Errorf("rate limited (HTTP 429)")
		case resp.StatusCode >= 500:
			result.Error = fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, respBody)
		default:
			result.Error = fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, respBody)
			return result
		}
	}
	return result
}
