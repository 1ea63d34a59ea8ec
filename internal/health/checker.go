package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultWaitTimeout  = 10 * time.Second
)

// Checker verifies that a target endpoint is accepting connections before an
// experiment starts hammering it. Any HTTP response counts as live; readiness
// is about reachability, not about the status code the target chooses to send.
type Checker struct {
	client   *http.Client
	logger   zerolog.Logger
	interval time.Duration
	timeout  time.Duration
}

// Option customizes a Checker.
type Option func(*Checker)

// WithPollInterval sets the delay between probe attempts.
func WithPollInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithWaitTimeout bounds the total time WaitReady is allowed to poll.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger for per-probe diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker constructs a readiness checker using the provided HTTP client.
func NewChecker(client *http.Client, opts ...Option) *Checker {
	c := &Checker{
		client:   client,
		logger:   zerolog.Nop(),
		interval: defaultPollInterval,
		timeout:  defaultWaitTimeout,
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe issues a single GET against the target and reports whether any
// response came back.
func (c *Checker) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	resp.Body.Close()
	return nil
}

// WaitReady polls the target until it responds or the wait budget runs out.
func (c *Checker) WaitReady(ctx context.Context, url string) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = c.Probe(waitCtx, url)
		if lastErr == nil {
			c.logger.Debug().Int("attempt", attempt).Str("url", url).Msg("target is ready")
			return nil
		}
		c.logger.Debug().Err(lastErr).Int("attempt", attempt).Msg("target not ready")

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("target %s not ready after %s: %w", url, c.timeout, lastErr)
		case <-ticker.C:
		}
	}
}
