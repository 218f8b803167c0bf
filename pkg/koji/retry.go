package koji

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryConfig returns a reasonable default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
	}
}

// retryable reports whether a hub response should be retried
func retryable(resp *http.Response) bool {
	return resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError
}

// WithRetry executes a function with retry logic for transient hub failures
func WithRetry(ctx context.Context, operation string, config RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	logger := log.Ctx(ctx)
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * config.BaseDelay
			logger.Info().
				Str("operation", operation).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("phase", "retry").
				Msg("Retrying operation after delay")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := fn()
		if err != nil {
			lastErr = err
			logger.Warn().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt).
				Str("phase", "retry").
				Msg("Operation failed with error")
			continue
		}

		if retryable(resp) {
			if resp.Body != nil {
				resp.Body.Close()
			}
			lastErr = fmt.Errorf("hub returned %s", resp.Status)
			logger.Warn().
				Int("status_code", resp.StatusCode).
				Str("operation", operation).
				Int("attempt", attempt).
				Str("phase", "retry").
				Msg("Operation failed with retryable status")
			continue
		}

		return resp, nil
	}

	logger.Error().
		Err(lastErr).
		Str("operation", operation).
		Int("max_attempts", config.MaxRetries+1).
		Str("phase", "retry").
		Msg("Operation failed after all retry attempts")

	return nil, fmt.Errorf("operation %s failed after %d attempts: %w", operation, config.MaxRetries+1, lastErr)
}

// retryTransport retries XML-RPC POSTs and binds them to a context
type retryTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	config RetryConfig
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.WithContext(t.ctx)
	if req.Body != nil && req.GetBody != nil {
		req.Body.Close()
	}
	return WithRetry(t.ctx, "xmlrpc "+req.URL.Path, t.config, func() (*http.Response, error) {
		attempt := req.Clone(t.ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			attempt.Body = body
		}
		return t.base.RoundTrip(attempt)
	})
}
