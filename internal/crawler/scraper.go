package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cinesync/internal/config"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Scraper handles page fetches with config-driven retry logic.
type Scraper struct {
	client      *http.Client
	retryPolicy *config.RetryPolicy
}

// NewScraper creates a new scraper instance with default retry policy.
func NewScraper() *Scraper {
	return NewScraperWithConfig(&config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    500,
		MaxDelayMs:        30000,
		BackoffMultiplier: 2.0,
		TimeoutSec:        30,
	})
}

// NewScraperWithConfig creates a new scraper with a custom retry policy.
func NewScraperWithConfig(retryPolicy *config.RetryPolicy) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: retryPolicy.GetTimeout(),
		},
		retryPolicy: retryPolicy,
	}
}

// Fetch performs a GET request and returns the body.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	return s.do(ctx, pageURL, nil)
}

// PostForm performs a form POST (the source site drives its showtime date
// selector through ASP.NET postbacks) and returns the body.
func (s *Scraper) PostForm(ctx context.Context, pageURL string, form url.Values) (string, error) {
	return s.do(ctx, pageURL, form)
}

func (s *Scraper) do(ctx context.Context, pageURL string, form url.Values) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.retryPolicy.GetRetryDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		body, retryable, err := s.attempt(ctx, pageURL, form)
		if err == nil {
			return body, nil
		}

		lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, s.retryPolicy.MaxAttempts, err)

		if ctx.Err() != nil || !retryable {
			return "", lastErr
		}
	}

	return "", lastErr
}

// attempt runs one request. The second return value says whether the failure
// is worth retrying.
func (s *Scraper) attempt(ctx context.Context, pageURL string, form url.Values) (string, bool, error) {
	method := http.MethodGet

	var reqBody io.Reader = http.NoBody
	if form != nil {
		method = http.MethodPost
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, pageURL, reqBody)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}

	setBrowserHeaders(req)

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", isRetryableStatus(resp.StatusCode), fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), false, nil
}

// setBrowserHeaders mimics a real browser to avoid being blocked by the site.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
