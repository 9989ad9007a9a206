// Package fetch provides the throttled, retrying HTTP client used by all
// vendor scrapers. Every failure it reports is vendor-scoped; callers must
// never escalate a fetch error beyond the vendor that produced it.
package fetch

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/retry"
)

// Client defaults.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
	DefaultMaxBackoff  = 30 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// userAgents is rotated per request so vendors see varied browser
// identities.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// defaultHeaders are sent with every request unless overridden by the caller.
var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "es-GT,es;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
}

// Config configures a vendor fetch client.
type Config struct {
	// BaseDelay is the pre-request pacing delay. Each request waits
	// base_delay plus uniform jitter in [0, base_delay/2).
	BaseDelay time.Duration
	// MaxRetries bounds retries after the initial attempt.
	MaxRetries int
	// BackoffBase is the first backoff step; subsequent steps double.
	BackoffBase time.Duration
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// SetDefaults applies default values for unset fields.
func (c *Config) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client is a rate-limited HTTP client for one vendor. It is safe for
// concurrent use across searches.
type Client struct {
	vendorID string
	http     *http.Client
	limiter  *rate.Limiter
	cfg      Config
	onRetry  func(vendorID string)
	logger   logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetryObserver registers a callback invoked once per retried
// attempt, keyed by vendor. Used to feed the retry counter.
func WithRetryObserver(fn func(vendorID string)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// NewClient creates a fetch client for one vendor.
func NewClient(vendorID string, cfg Config, log logger.Logger, opts ...Option) *Client {
	cfg.SetDefaults()

	var limiter *rate.Limiter
	if cfg.BaseDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BaseDelay), 1)
		// Consume the initial token so the very first request also
		// waits out the base delay.
		limiter.Allow()
	}

	c := &Client{
		vendorID: vendorID,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		cfg:     cfg,
		logger:  log.With(logger.String("vendor", vendorID)),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the body at url. HTTP 429 and timeouts are retried with
// exponential backoff (2^attempt steps of the backoff base) up to the
// configured retry budget; other HTTP errors fail immediately. The returned
// error is always a classified *Error reachable via errors.As.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	var body []byte
	attempt := 0

	rcfg := retry.Config{
		MaxAttempts:  c.cfg.MaxRetries + 1,
		InitialDelay: c.cfg.BackoffBase,
		MaxDelay:     DefaultMaxBackoff,
		Multiplier:   2.0,
		IsRetryable:  retryable,
	}

	err := retry.Do(ctx, rcfg, func() error {
		attempt++
		if attempt > 1 && c.onRetry != nil {
			c.onRetry(c.vendorID)
		}
		b, attemptErr := c.attempt(ctx, url, headers)
		if attemptErr != nil {
			c.logger.Warn("fetch attempt failed",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.Error(attemptErr),
			)
			return attemptErr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetch succeeded",
		logger.String("url", url),
		logger.Int("attempts", attempt),
		logger.Int("bytes", len(body)),
	)
	return body, nil
}

// throttle applies the pre-request pacing delay with uniform jitter.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return classifyTransport("", err)
		}
	}
	if half := c.cfg.BaseDelay / 2; half > 0 {
		jitter := rand.N(half)
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return classifyTransport("", ctx.Err())
		}
	}
	return nil
}

// attempt performs a single HTTP GET and classifies its failure.
func (c *Client) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: url, Err: err}
	}

	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &Error{Kind: KindNetwork, URL: url, Err: readErr}
		}
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, URL: url, StatusCode: resp.StatusCode}

	default:
		return nil, &Error{Kind: KindHTTP, URL: url, StatusCode: resp.StatusCode}
	}
}

// retryable reports whether a classified fetch error warrants another
// attempt. Hard HTTP errors are final; throttling and transport flakes
// are not.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindNetwork, KindRateLimited:
		return true
	default:
		return false
	}
}
