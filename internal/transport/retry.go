package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled     bool
	MaxAttempts int
	Backoff     time.Duration
}

// Retry re-sends an exchange after a retryable transport failure
type Retry struct {
	next   Transport
	config RetryConfig
	logger zerolog.Logger
}

// NewRetry wraps next with retry logic
func NewRetry(next Transport, cfg RetryConfig, logger zerolog.Logger) *Retry {
	return &Retry{
		next:   next,
		config: cfg,
		logger: logger.With().Str("component", "retry").Logger(),
	}
}

// Execute sends the exchange, retrying up to MaxAttempts times in total
func (r *Retry) Execute(ctx context.Context, ex *Exchange) (*Response, error) {
	if !r.config.Enabled {
		return r.next.Execute(ctx, ex)
	}

	maxAttempts := r.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := r.next.Execute(ctx, ex)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if !IsRetryable(err) {
			return nil, err
		}
		if attempt+1 == maxAttempts {
			break
		}

		r.logger.Warn().
			Int("attempt", attempt+1).
			Int("maxAttempts", maxAttempts).
			Err(err).
			Str("url", ex.URL).
			Msg("request failed, retrying")

		if r.config.Backoff > 0 {
			timer := time.NewTimer(r.config.Backoff * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, err
			case <-timer.C:
			}
		}
	}

	return nil, lastErr
}

// IsRetryable reports whether err is worth another attempt: network
// failures, 429 and 5xx statuses. Other 4xx statuses and an open circuit
// are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	return errors.Is(err, ErrTransport)
}
