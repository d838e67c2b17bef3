// Package source holds the HTTP plumbing shared by the platform adapters in
// its subpackages.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"timeline_sync/internal/domain"
)

// ClientConfig holds transport and retry settings.
type ClientConfig struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
}

// Client performs JSON GET requests with retry on transient failures.
// Rate-limit responses are never retried; they surface as
// domain.ErrRateLimited so the caller can abandon the run.
type Client struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	logger         *slog.Logger
}

// NewClient creates a client with the retry settings of cfg.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "TimelineSync/1.0"
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		logger:         logger,
	}
}

// StatusError is a non-2xx response that is not a rate limit.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	headers = withAccept(headers, "application/json")
	return c.get(ctx, url, headers, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// GetBody fetches url and returns the raw body. Used for XML feeds.
func (c *Client) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var data []byte
	err := c.get(ctx, url, headers, func(body io.Reader) error {
		var err error
		data, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	})
	return data, err
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string, decode func(io.Reader) error) error {
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.doRequest(ctx, url, headers, decode)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"url", url,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	if retryable(err) {
		return fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string, decode func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if isRateLimited(resp) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d from %s", domain.ErrRateLimited, resp.StatusCode, url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	return decode(resp.Body)
}

// withAccept sets a default Accept header without overriding the caller's.
func withAccept(headers map[string]string, accept string) map[string]string {
	if _, ok := headers["Accept"]; ok {
		return headers
	}
	return lo.Assign(headers, map[string]string{"Accept": accept})
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

// isRateLimited recognizes 429 and GitHub's exhausted-quota 403.
func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode == http.StatusForbidden {
		remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
		return err == nil && remaining == 0
	}
	return false
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false
	}
	return true
}

// BearerHeaders returns an Authorization header map, or nil for an empty token.
func BearerHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
