package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects exchanges
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker is open", ErrTransport)

type cbState int

const (
	cbClosed cbState = iota
	cbOpen
	cbHalfOpen
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled             bool
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int
}

// Breaker stops sending exchanges to an endpoint after consecutive
// failures and probes it again after RecoveryTimeout.
type Breaker struct {
	next            Transport
	cfg             CircuitBreakerConfig
	state           cbState
	failures        int
	halfOpenSuccess int
	lastFailureAt   time.Time
	now             func() time.Time
	mu              sync.Mutex
}

// NewBreaker wraps next with a circuit breaker
func NewBreaker(next Transport, cfg CircuitBreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 2
	}
	return &Breaker{
		next:  next,
		cfg:   cfg,
		state: cbClosed,
		now:   time.Now,
	}
}

// Execute forwards the exchange unless the circuit is open
func (b *Breaker) Execute(ctx context.Context, ex *Exchange) (*Response, error) {
	if !b.AllowRequest() {
		return nil, ErrCircuitOpen
	}

	resp, err := b.next.Execute(ctx, ex)
	if err != nil && countsAsFailure(err) {
		b.RecordFailure()
		return nil, err
	}
	b.RecordSuccess()
	return resp, err
}

// countsAsFailure ignores client-side statuses; only the endpoint being
// unreachable or failing should trip the breaker.
func countsAsFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// AllowRequest returns true if a request should be allowed
func (b *Breaker) AllowRequest() bool {
	if !b.cfg.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case cbClosed:
		return true
	case cbHalfOpen:
		return b.halfOpenSuccess < b.cfg.HalfOpenMaxRequests
	case cbOpen:
		if b.now().Sub(b.lastFailureAt) >= b.cfg.RecoveryTimeout {
			b.state = cbHalfOpen
			b.halfOpenSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful request
func (b *Breaker) RecordSuccess() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case cbHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.HalfOpenMaxRequests {
			b.state = cbClosed
			b.failures = 0
		}
	case cbClosed:
		b.failures = 0
	}
}

// RecordFailure records a failed request
func (b *Breaker) RecordFailure() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()

	switch b.state {
	case cbClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = cbOpen
		}
	case cbHalfOpen:
		b.state = cbOpen
		b.halfOpenSuccess = 0
	}
}

// IsOpen reports whether the breaker is currently rejecting requests
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == cbOpen
}
