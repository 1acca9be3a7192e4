package commentary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultAttemptTimeout = 120 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 20 * time.Second
)

// Client sends prompts to a Provider with a per-attempt timeout and exponential backoff.
type Client struct {
	provider Provider
	logger   *slog.Logger

	timeout          time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
	observe          func(status string)
}

// Option customizes the client.
type Option func(*Client)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver is called once per attempt with "ok" or "error".
func WithObserver(fn func(status string)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient wraps provider with the default retry policy.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:         provider,
		logger:           slog.Default(),
		timeout:          defaultAttemptTimeout,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns the first non-empty response, retrying transient failures.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.provider == nil {
		return "", errors.New("complete: no provider configured")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("complete: prompt required")
	}

	attempts := max(c.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.attempt(ctx, req)
		if err == nil {
			c.record("ok")
			return content, nil
		}
		c.record("error")
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt < attempts {
				return "", err
			}
			break
		}
		c.logger.Warn("model request failed, retrying",
			"provider", c.provider.Name(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("complete: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		reason := ""
		if resp != nil {
			reason = resp.FinishReason
		}
		return "", fmt.Errorf("%w (finish_reason=%q)", ErrEmptyResponse, reason)
	}
	return resp.Content, nil
}

func (c *Client) record(status string) {
	if c.observe != nil {
		c.observe(status)
	}
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || isPermanent(err) {
		return 0, false
	}
	// a per-attempt deadline is worth retrying, the caller's isn't
	return c.backoffDelay(attempt), true
}

// backoffDelay doubles the base delay per attempt: base, 2*base, 4*base, ... capped at max.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
