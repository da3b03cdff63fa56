// Package apiclient provides the shared HTTP client for external movie data
// providers: bounded timeouts, exponential-backoff retries for transient
// failures and a typed error taxonomy.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxErrorBodyBytes = 200

// Options configures a Client. Zero values fall back to the documented
// defaults.
type Options struct {
	Timeout           time.Duration // per-request timeout (default 3s)
	MaxRetries        int           // retry attempts after the first try (default 3)
	BackoffBase       time.Duration // first backoff delay, doubles per attempt (default 500ms)
	RequestsPerSecond float64       // outbound pacing, 0 disables
}

// Client performs GET requests against one or more providers with retry and
// error classification. Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	// The http.Client carries no Timeout of its own: the per-attempt
	// context enforces the deadline, so a per-call override can lengthen
	// it as well as shorten it.
	return &Client{
		httpClient:  &http.Client{},
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		limiter:     limiter,
		logger:      logger,
	}
}

// Get performs a GET request with the default timeout.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, apiName string) ([]byte, error) {
	return c.GetWithTimeout(ctx, rawURL, params, apiName, 0)
}

// GetWithTimeout performs a GET request with a per-call timeout override.
// A zero timeout uses the client default. The returned bytes are the raw
// response body of a 2xx response; any other outcome is a classified *Error.
func (c *Client) GetWithTimeout(ctx context.Context, rawURL string, params url.Values, apiName string, timeout time.Duration) ([]byte, error) {
	fullURL := rawURL
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", rawURL, params.Encode())
	}

	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.Debug().
				Str("api", apiName).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Str("error_kind", string(lastErr.Kind)).
				Msg("retrying provider request")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, &Error{Kind: KindTransient, API: apiName, Message: "request cancelled during backoff", Err: err}
			}
		}

		body, apiErr := c.doOnce(ctx, fullURL, apiName, timeout, attempt)
		if apiErr == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("api", apiName).
					Int("attempts", attempt+1).
					Msg("provider request succeeded after retry")
			}
			return body, nil
		}

		if !retryable(apiErr.Kind) {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	lastErr.Message = fmt.Sprintf("%s after %d attempts", lastErr.Message, c.maxRetries+1)
	c.logger.Error().Str("api", apiName).Int("attempts", c.maxRetries+1).Msg(lastErr.Message)
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, fullURL, apiName string, timeout time.Duration, attempt int) ([]byte, *Error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTransient, API: apiName, Message: "request cancelled waiting for rate limiter", Err: err}
		}
	}

	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, API: apiName, Message: fmt.Sprintf("creating request: %v", err), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		c.logger.Warn().
			Str("api", apiName).
			Int("attempt", attempt+1).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("provider request failed")
		return nil, &Error{Kind: KindTransient, API: apiName, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, API: apiName, Message: fmt.Sprintf("reading response: %v", err), Err: err}
	}

	c.logger.Debug().
		Str("api", apiName).
		Int("attempt", attempt+1).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("provider request completed")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	kind := classifyStatus(resp.StatusCode)
	return nil, &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		API:        apiName,
		Message:    fmt.Sprintf("request failed: %s", truncate(body, maxErrorBodyBytes)),
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.backoffBase * (1 << attempt)
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

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
