package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrUnauthorized = errors.New("API authentication failed")
	ErrStatus       = errors.New("API returned non-200 status")
	ErrRetriesSpent = errors.New("API retries exhausted")
)

// RetryPolicy controls backoff between attempts
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is three retries on a 2s base
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
}

// Delay returns base*2^(attempt-1) plus jitter in [0, base/2), capped at MaxDelay
func (p RetryPolicy) Delay(attempt int, rnd *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if half := int64(p.BaseDelay / 2); half > 0 {
		d += time.Duration(rnd.Int63n(half))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// SourceConfig enumerates everything an adapter needs to reach one upstream
type SourceConfig struct {
	Name           string
	BaseURL        string
	RequiredParams map[string]string
	// AuthHeader carries the key as a header; AuthParam as a query parameter
	AuthHeader string
	AuthParam  string
	APIKey     string
	Retry      RetryPolicy
}

// Client is a rate-limited HTTP GET client for one source
type Client struct {
	cfg        SourceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	rnd        *rand.Rand
}

// NewClient creates a client with a per-call timeout and a token-bucket limit
func NewClient(cfg SourceConfig, timeout time.Duration, perSecond float64) *Client {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the source name used in logs and metrics
func (c *Client) Name() string {
	return c.cfg.Name
}

func (c *Client) buildURL(path string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid url for %s: %w", c.cfg.Name, err)
	}
	q := u.Query()
	for k, v := range c.cfg.RequiredParams {
		q.Set(k, v)
	}
	for k, v := range params {
		q.Set(k, v)
	}
	if c.cfg.AuthParam != "" {
		q.Set(c.cfg.AuthParam, c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// get performs a GET with retry, backoff and rate limiting.
// 429, 5xx and network errors are retried; 401/403 and other 4xx fail at once.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	op := c.cfg.Name + " " + path
	target, err := c.buildURL(path, params)
	if err != nil {
		return nil, apperr.Configuration(op, err)
	}

	var lastErr error
	var wait time.Duration
	override := false
	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if !override {
				wait = c.cfg.Retry.Delay(attempt, c.rnd)
			}
			log.Info().
				Str("source", c.cfg.Name).
				Str("path", path).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, apperr.DataSource(op, ctx.Err())
			case <-time.After(wait):
			}
			override = false
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperr.DataSource(op, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, apperr.DataSource(op, fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "propedge/1.0")
		if c.cfg.AuthHeader != "" {
			req.Header.Set(c.cfg.AuthHeader, c.cfg.APIKey)
		}

		log.Debug().
			Str("source", c.cfg.Name).
			Str("path", path).
			Int("attempt", attempt+1).
			Msg("Making API request")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordHTTPRequest(c.cfg.Name, "error", time.Since(start).Seconds())
			lastErr = fmt.Errorf("API request failed: %w", err)
			if ctx.Err() != nil {
				return nil, apperr.DataSource(op, lastErr)
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.RecordHTTPRequest(c.cfg.Name, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			log.Debug().
				Str("source", c.cfg.Name).
				Int("status", resp.StatusCode).
				Int("size", len(body)).
				Msg("API request successful")
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, snippet(body))
			if ra, ok := retryAfter(resp.Header); ok {
				wait, override = ra, true
				if c.cfg.Retry.MaxDelay > 0 && wait > c.cfg.Retry.MaxDelay {
					wait = c.cfg.Retry.MaxDelay
				}
			}
			log.Warn().
				Str("source", c.cfg.Name).
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Msg("Received retryable error, will retry")

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, apperr.DataSource(op, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode))

		default:
			return nil, apperr.DataSource(op, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, snippet(body)))
		}
	}

	return nil, apperr.DataSource(op, fmt.Errorf("%w after %d attempts: %v", ErrRetriesSpent, c.cfg.Retry.MaxRetries+1, lastErr))
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date
func retryAfter(h http.Header) (time.Duration, bool) {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
