package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"upset-radar-api/config"
)

// Sentinel errors for upstream source failures. Callers branch on these to
// decide whether a run failed, was skipped, or should fall back to cache.
var (
	// ErrUnauthorized covers 401/403 responses. Never retried and never
	// served from cache: a bad key needs operator attention, not masking.
	ErrUnauthorized = errors.New("source rejected credentials")

	// ErrUpstreamUnavailable means the request kept failing after retries.
	ErrUpstreamUnavailable = errors.New("source unavailable")

	// ErrSourceNotConfigured means the adapter has no credentials and the
	// job depending on it should record a skipped result.
	ErrSourceNotConfigured = errors.New("source not configured")
)

// isAuthError reports whether err stems from rejected credentials.
func isAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

const (
	sourceRequestTimeout = 30 * time.Second
	sourceMaxAttempts    = 3
	sourceBackoffBase    = 500 * time.Millisecond
)

// sourceClient wraps one upstream API with rate limiting and bounded retry.
// Retries apply to transport errors, 429 and 5xx only; auth failures and
// other 4xx return immediately.
type sourceClient struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func newSourceClient(name string, requestsPerSecond float64) *sourceClient {
	return &sourceClient{
		name:    name,
		http:    &http.Client{Timeout: sourceRequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// getJSON fetches url and decodes the body into out. headers may be nil.
func (c *sourceClient) getJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= sourceMaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := sourceBackoffBase * time.Duration(1<<(attempt-2))
			config.Log.Warnf("%s request failed (%v), retry %d/%d in %s", c.name, lastErr, attempt-1, sourceMaxAttempts-1, backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := c.attempt(ctx, url, headers, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, c.name, lastErr)
}

func (c *sourceClient) attempt(ctx context.Context, url string, headers map[string]string, out interface{}) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, fmt.Errorf("%w: %s returned %d", ErrUnauthorized, c.name, resp.StatusCode)
	case retryableStatus(resp.StatusCode):
		return true, fmt.Errorf("%s returned %d", c.name, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%s returned %d: %s", c.name, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%s response decode: %w", c.name, err)
	}
	return false, nil
}
